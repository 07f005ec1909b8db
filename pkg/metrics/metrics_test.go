package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTurn_CountsByIntentAndResult(t *testing.T) {
	before := testutil.ToFloat64(assistant().turnsTotal.WithLabelValues("count_driver", "ok"))
	ObserveTurn("count_driver", true, 0.8, 15*time.Millisecond)
	ObserveTurn("count_driver", false, 0.4, time.Millisecond)

	assert.InDelta(t, before+1, testutil.ToFloat64(assistant().turnsTotal.WithLabelValues("count_driver", "ok")), 1e-9)
	assert.GreaterOrEqual(t, testutil.ToFloat64(assistant().turnsTotal.WithLabelValues("count_driver", "error")), 1.0)
}

func TestSweepEvicted_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(assistant().sweepEvictions)
	SweepEvicted(0)
	SweepEvicted(-3)
	assert.InDelta(t, before, testutil.ToFloat64(assistant().sweepEvictions), 1e-9)
	SweepEvicted(2)
	assert.InDelta(t, before+2, testutil.ToFloat64(assistant().sweepEvictions), 1e-9)
}

func TestPrometheusController_ServesMetrics(t *testing.T) {
	CacheLookup("hit")
	c := NewPrometheusController("")
	require.Equal(t, "/debug/prometheus", c.Key())

	r := mux.NewRouter()
	c.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "assistant_executor_cache_lookups_total")
}
