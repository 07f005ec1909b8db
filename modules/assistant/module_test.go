package assistant

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/executor"
	"github.com/flotatrack/fleet-assistant/modules/assistant/services"
	"github.com/flotatrack/fleet-assistant/pkg/application"
	"github.com/flotatrack/fleet-assistant/pkg/configuration"
	"github.com/flotatrack/fleet-assistant/pkg/eventbus"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
)

type fixedExecutor struct{}

func (fixedExecutor) Query(context.Context, string, []any) ([]executor.Row, error) {
	return []executor.Row{{"total": int64(2)}}, nil
}

func testOptions(path string) *ModuleOptions {
	return &ModuleOptions{
		Assistant: configuration.AssistantOptions{
			MemoryBackend:       "memory",
			MaxAge:              24 * time.Hour,
			SweepInterval:       time.Hour,
			SnapshotEnabled:     true,
			SnapshotPath:        path,
			DefaultLimit:        50,
			MaxResultLimit:      100,
			AlertWindowDays:     30,
			ExpiryWindowDays:    30,
			MinBayesProbability: 0.35,
			CacheEnabled:        true,
			CacheTTL:            time.Minute,
		},
		Executor: fixedExecutor{},
	}
}

func newApp() application.Application {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return application.New(&application.ApplicationOptions{
		EventBus: eventbus.NewEventPublisher(logging.Nop()),
		Logger:   logger,
	})
}

func TestModule_RegisterRequiresExecutor(t *testing.T) {
	t.Parallel()

	err := NewModule(&ModuleOptions{}).Register(newApp())
	require.Error(t, err)
}

func TestModule_SnapshotSurvivesRestart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "conversations.bolt")
	key := conversation.Key{UserID: 3, CompanyID: 9}
	ctx := context.Background()

	first := NewModule(testOptions(path))
	app := newApp()
	require.NoError(t, first.Register(app))
	require.NoError(t, first.Start(ctx))

	svc := app.Service(services.AssistantService{}).(*services.AssistantService)
	resp, err := svc.ProcessQuery(ctx, services.QueryRequest{Message: "¿Cuántos vehículos hay disponibles?", UserID: key.UserID, CompanyID: key.CompanyID})
	require.NoError(t, err)
	assert.Equal(t, "Hay 2 vehículos que cumplen tu consulta.", resp.ResponseText)
	require.NoError(t, first.Stop())

	second := NewModule(testOptions(path))
	require.NoError(t, second.Register(newApp()))
	require.NoError(t, second.Start(ctx))
	t.Cleanup(func() { _ = second.Stop() })

	stats, err := second.Service().Memory().GetLearningStats(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalInteractions)
}
