package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotatrack/fleet-assistant/pkg/composables"
)

func TestWithIdentity(t *testing.T) {
	t.Parallel()

	var got composables.Identity
	h := WithIdentity("X-User-ID", "X-Company-ID")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := composables.UseIdentity(r.Context())
		require.NoError(t, err)
		got = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "7")
	req.Header.Set("X-Company-ID", "3")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, composables.Identity{UserID: 7, CompanyID: 3}, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
}

func TestWithLogger_RequestIDAndPanicRecovery(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)
	logger.SetLevel(logrus.InfoLevel)

	var reqID string
	ok := WithLogger(logger, DefaultLoggerOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, _ = composables.UseRequestID(r.Context())
		composables.UseLogger(r.Context()).Info("inside handler")
	}))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", reqID)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	assert.Contains(t, buf.String(), "inside handler")
	assert.Contains(t, buf.String(), "request completed")

	boom := WithLogger(logger, DefaultLoggerOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec = httptest.NewRecorder()
	require.NotPanics(t, func() { boom.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil)) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
}
