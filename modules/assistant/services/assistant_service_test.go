package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/executor"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/persistence"
	"github.com/flotatrack/fleet-assistant/modules/assistant/nlp"
	"github.com/flotatrack/fleet-assistant/modules/assistant/planner"
	"github.com/flotatrack/fleet-assistant/pkg/eventbus"
	"github.com/flotatrack/fleet-assistant/pkg/serrors"
)

type stubExecutor struct {
	mu     sync.Mutex
	rows   []executor.Row
	err    error
	panics bool
	sql    []string
	params [][]any
}

func (s *stubExecutor) Query(_ context.Context, sql string, params []any) ([]executor.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics {
		panic("driver exploded")
	}
	s.sql = append(s.sql, sql)
	s.params = append(s.params, params)
	return s.rows, s.err
}

func (s *stubExecutor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sql)
}

type serviceFixture struct {
	service *AssistantService
	repo    *persistence.InmemConversationRepository
	exec    *stubExecutor
	bus     eventbus.EventBusWithError
	events  *[]*TurnProcessedEvent
}

func newServiceFixture(t *testing.T, exec *stubExecutor, lim *limiter.Limiter) serviceFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	analyzer, err := nlp.NewDefaultAnalyzer(nlp.DefaultMinBayesProbability, nlp.WithClock(clock))
	require.NoError(t, err)
	pl, err := planner.New(planner.DefaultOptions())
	require.NoError(t, err)

	repo := persistence.NewInmemConversationRepository()
	bus := eventbus.NewEventPublisher(nil)
	var mu sync.Mutex
	events := []*TurnProcessedEvent{}
	bus.Subscribe(func(e *TurnProcessedEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	service := NewAssistantService(AssistantServiceConfig{
		Analyzer:  analyzer,
		Planner:   pl,
		Executor:  exec,
		Memory:    NewMemoryService(MemoryServiceConfig{Repo: repo, Clock: clock}),
		Responder: newTestResponder(t),
		EventBus:  bus,
		Limiter:   lim,
		Clock:     clock,
	})
	return serviceFixture{service: service, repo: repo, exec: exec, bus: bus, events: &events}
}

func ask(t *testing.T, f serviceFixture, message string) QueryResponse {
	t.Helper()
	resp, err := f.service.ProcessQuery(context.Background(), QueryRequest{Message: message, UserID: testKey.UserID, CompanyID: testKey.CompanyID})
	require.NoError(t, err)
	return resp
}

func TestProcessQuery_CountDriversScenario(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{rows: []executor.Row{{"total": int64(12)}}}, nil)
	resp := ask(t, f, "¿Cuántos conductores están activos?")

	assert.Equal(t, intent.CountDriver, resp.Intent)
	assert.Equal(t, nlp.MaxConfidence, resp.Confidence)
	assert.Equal(t, "Hay 12 conductores que cumplen tu consulta.", resp.ResponseText)
	assert.Equal(t, "Conductores", resp.Metadata.Plan.Table)
	assert.Contains(t, resp.Metadata.Plan.SQL, "COUNT(*) as total")
	assert.Contains(t, resp.Metadata.Plan.SQL, "Conductores.empresa_id = $1")
	assert.Empty(t, resp.Metadata.ErrorCode)
	assert.LessOrEqual(t, len(resp.Suggestions), conversation.MaxSuggestions)

	require.Equal(t, 1, f.exec.Calls())
	assert.Equal(t, []any{int64(42), "activo"}, f.exec.params[0])

	record, err := f.repo.Get(context.Background(), testKey)
	require.NoError(t, err)
	require.Len(t, record.Messages, 2)
	assert.Equal(t, conversation.SenderUser, record.Messages[0].Sender)
	assert.True(t, record.Messages[0].Success)
	assert.Equal(t, resp.ResponseText, record.Messages[1].Text)

	require.Len(t, *f.events, 1)
	ev := (*f.events)[0]
	assert.Equal(t, testKey, ev.Key)
	assert.Equal(t, intent.CountDriver, ev.Intent)
	assert.True(t, ev.Success)
	assert.Equal(t, 1, ev.ResultCount)
}

func TestProcessQuery_EmptyMessage(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{}, nil)
	resp := ask(t, f, "")

	assert.Equal(t, intent.Unknown, resp.Intent)
	assert.Equal(t, nlp.MinConfidence, resp.Confidence)
	assert.Equal(t, nlp.SourceFallback, resp.Metadata.Classifier)
	assert.Empty(t, resp.Metadata.Plan.SQL)
	assert.Zero(t, f.exec.Calls())
	assert.Zero(t, f.repo.Len())
	assert.Len(t, resp.Suggestions, conversation.MaxSuggestions)
}

func TestProcessQuery_ExecutionFailureApologises(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{err: errors.New(`pq: relation "secret_table" does not exist`)}, nil)
	resp := ask(t, f, "¿Cuántos vehículos hay disponibles?")

	assert.Equal(t, intent.CountVehicle, resp.Intent)
	assert.Equal(t, executor.ErrExecution.Code, resp.Metadata.ErrorCode)
	assert.Contains(t, resp.ResponseText, "Lo siento")
	assert.NotContains(t, resp.ResponseText, "secret_table")

	stats, err := f.service.Memory().GetLearningStats(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalInteractions)
	assert.Zero(t, stats.SuccessfulInteractions)
}

func TestProcessQuery_PanicsBecomeApology(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{panics: true}, nil)
	resp := ask(t, f, "¿Cuántos conductores están activos?")

	assert.Equal(t, ErrInternal.Code, resp.Metadata.ErrorCode)
	assert.Equal(t, intent.Unknown, resp.Intent)
	assert.Contains(t, resp.ResponseText, "error inesperado")
}

func TestProcessQuery_SimilarTurnsShareContext(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{rows: []executor.Row{{"total": int64(3)}}}, nil)
	ask(t, f, "cuantos conductores estan activos")
	resp := ask(t, f, "cuantos conductores estan disponibles")

	assert.Equal(t, []string{"cuantos conductores estan activos"}, resp.Metadata.RelatedTurns)
}

func TestProcessQuery_LongAccentedMessageIsRemembered(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{rows: []executor.Row{{"total": int64(4)}}}, nil)
	message := "¿Cuántos conductores están activos? " + strings.Repeat("ñ", 1100)
	require.Greater(t, len(message), conversation.MaxMessageLength)

	resp := ask(t, f, message)
	assert.Equal(t, intent.CountDriver, resp.Intent)

	record, err := f.repo.Get(context.Background(), testKey)
	require.NoError(t, err)
	require.Len(t, record.Messages, 2)
	assert.Equal(t, message, record.Messages[0].Text)
}

func TestProcessQuery_ConversationalTurnSkipsExecution(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{}, nil)
	resp := ask(t, f, "hola")

	assert.Equal(t, intent.Greeting, resp.Intent)
	assert.Contains(t, resp.ResponseText, "¡Hola!")
	assert.Zero(t, f.exec.Calls())
	assert.Equal(t, 1, f.repo.Len())
}

func TestProcessQuery_InvalidRequest(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{}, nil)
	_, err := f.service.ProcessQuery(context.Background(), QueryRequest{Message: "hola", UserID: 0, CompanyID: 42})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "ASSISTANT_INVALID_REQUEST", serrors.Code(err))
	assert.Empty(t, *f.events)
}

func TestProcessQuery_RateLimited(t *testing.T) {
	t.Parallel()

	lim := limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 1})
	f := newServiceFixture(t, &stubExecutor{}, lim)

	ask(t, f, "hola")
	resp, err := f.service.ProcessQuery(context.Background(), QueryRequest{Message: "hola", UserID: testKey.UserID, CompanyID: testKey.CompanyID})
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, resp.ResponseText, "demasiadas consultas")

	_, err = f.service.ProcessQuery(context.Background(), QueryRequest{Message: "hola", UserID: testKey.UserID + 1, CompanyID: testKey.CompanyID})
	require.NoError(t, err)
}

func TestAssistantService_Plan(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{}, nil)
	analysis, plan, err := f.service.Plan(context.Background(), "estado general del sistema", 42)
	require.NoError(t, err)

	assert.Equal(t, intent.SystemStatus, analysis.Intent)
	assert.True(t, plan.IsMultiQuery)
	assert.Equal(t, []any{int64(42), 30}, plan.Params)
	assert.Zero(t, f.exec.Calls())
	assert.Zero(t, f.repo.Len())
}

func TestAssistantService_Forget(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, &stubExecutor{}, nil)
	forgotten := make(chan conversation.Key, 1)
	f.bus.Subscribe(func(e *MemoryForgottenEvent) { forgotten <- e.Key })

	ask(t, f, "hola")
	require.NoError(t, f.service.Forget(context.Background(), testKey))
	assert.Zero(t, f.repo.Len())
	assert.Equal(t, testKey, <-forgotten)
}
