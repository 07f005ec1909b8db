package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

func TestMemoryService_AddMessageEvictsOldest(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	sched := &recordingScheduler{}
	m, repo := newMemory(t, clock, sched)

	for i := 0; i <= conversation.MaxMessages; i++ {
		addUserTurn(t, m, testKey, fmt.Sprintf("mensaje %d", i), intent.Count, true)
		clock.Advance(time.Second)
	}

	record, err := repo.Get(context.Background(), testKey)
	require.NoError(t, err)
	require.Len(t, record.Messages, conversation.MaxMessages)
	assert.Equal(t, "mensaje 1", record.Messages[0].Text)
	assert.Equal(t, t0.Add(conversation.MaxMessages*time.Second), record.LastActivity)
	assert.Equal(t, conversation.MaxMessages+1, record.TotalTurns())
	assert.Len(t, sched.dirty, conversation.MaxMessages+1)
}

func TestMemoryService_AddMessageValidation(t *testing.T) {
	t.Parallel()

	m, repo := newMemory(t, clockwork.NewFakeClockAt(t0), nil)
	ctx := context.Background()

	_, err := m.AddMessage(ctx, conversation.Key{UserID: 0, CompanyID: 1}, MessageInput{Sender: conversation.SenderUser, Text: "hola"})
	require.ErrorIs(t, err, conversation.ErrInvalidKey)
	_, err = m.AddMessage(ctx, testKey, MessageInput{Sender: conversation.SenderUser})
	require.ErrorIs(t, err, conversation.ErrEmptyMessage)
	assert.Zero(t, repo.Len())

	msg, err := m.AddMessage(ctx, testKey, MessageInput{Sender: conversation.SenderBot, Text: "respuesta", Intent: intent.Greeting, Confidence: 3})
	require.NoError(t, err)
	assert.Equal(t, t0, msg.Timestamp)
	assert.Equal(t, 0.95, msg.Confidence)

	record, err := repo.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Zero(t, record.TotalTurns(), "bot turns do not feed the patterns")
}

func TestMemoryService_RelevantContext(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	m, _ := newMemory(t, clock, nil)
	ctx := context.Background()

	empty, err := m.GetRelevantContext(ctx, testKey, "lo que sea")
	require.NoError(t, err)
	assert.Empty(t, empty.Recent)
	assert.Empty(t, empty.Related)

	addUserTurn(t, m, testKey, "cuantos conductores estan activos", intent.CountDriver, true)
	_, err = m.AddMessage(ctx, testKey, MessageInput{Sender: conversation.SenderBot, Text: "cuantos conductores estan activos"})
	require.NoError(t, err)
	addUserTurn(t, m, testKey, "muestra las rutas", intent.ListRoute, true)
	for i := 0; i < 10; i++ {
		addUserTurn(t, m, testKey, fmt.Sprintf("relleno %d", i), intent.Unknown, false)
	}

	got, err := m.GetRelevantContext(ctx, testKey, "cuantos conductores estan disponibles")
	require.NoError(t, err)
	require.Len(t, got.Recent, 10)
	assert.Equal(t, "relleno 9", got.Recent[9].Text)
	require.Len(t, got.Related, 1)
	assert.Equal(t, "cuantos conductores estan activos", got.Related[0].Message.Text)
	assert.True(t, got.Related[0].Message.FromUser())
	assert.InDelta(t, 0.6, got.Related[0].Similarity, 1e-9)
}

func TestMemoryService_RelatedTurnsAreCapped(t *testing.T) {
	t.Parallel()

	m, _ := newMemory(t, clockwork.NewFakeClockAt(t0), nil)
	for i := 0; i < 8; i++ {
		addUserTurn(t, m, testKey, "vehiculos disponibles hoy", intent.ListVehicle, true)
	}
	addUserTurn(t, m, testKey, "vehiculos disponibles", intent.ListVehicle, true)

	got, err := m.GetRelevantContext(context.Background(), testKey, "vehiculos disponibles hoy")
	require.NoError(t, err)
	require.Len(t, got.Related, 5)
	for i, r := range got.Related {
		assert.Equal(t, 1.0, r.Similarity, i)
	}
}

func TestMemoryService_LearnedSuggestion(t *testing.T) {
	t.Parallel()

	m, _ := newMemory(t, clockwork.NewFakeClockAt(t0), nil)
	for i := 0; i < 10; i++ {
		addUserTurn(t, m, testKey, "licencias por vencer", intent.LicenseExpiry, i < 8)
	}

	got, err := m.GetSuggestions(context.Background(), testKey)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), conversation.MaxSuggestions)

	assert.Equal(t, "¿Qué licencias vencen pronto?", got[0].Text)
	assert.Equal(t, conversation.OriginLearned, got[0].Origin)
	assert.Equal(t, string(intent.LicenseExpiry), got[0].Category)
	assert.InDelta(t, 0.72, got[0].Relevance, 1e-9)

	seen := map[string]bool{}
	for i, s := range got {
		assert.False(t, seen[s.Text], "duplicate suggestion %q", s.Text)
		seen[s.Text] = true
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Relevance, s.Relevance)
		}
	}
	assert.True(t, seen["Consultar sobre licencias"])
}

func TestMemoryService_SuggestionsAreCachedUntilNextTurn(t *testing.T) {
	t.Parallel()

	m, repo := newMemory(t, clockwork.NewFakeClockAt(t0), nil)
	ctx := context.Background()

	defaults, err := m.GetSuggestions(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, defaults, conversation.MaxSuggestions)
	for _, s := range defaults {
		assert.Equal(t, conversation.OriginDefault, s.Origin)
	}

	addUserTurn(t, m, testKey, "cuantos conductores activos", intent.CountDriver, true)
	first, err := m.GetSuggestions(ctx, testKey)
	require.NoError(t, err)
	record, err := repo.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, first, record.Suggestions)

	addUserTurn(t, m, testKey, "cuantos conductores activos", intent.CountDriver, true)
	record, err = repo.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Nil(t, record.Suggestions)
}

func TestMemoryService_LearningStats(t *testing.T) {
	t.Parallel()

	m, _ := newMemory(t, clockwork.NewFakeClockAt(t0), nil)
	ctx := context.Background()

	empty, err := m.GetLearningStats(ctx, testKey)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalInteractions)
	assert.Empty(t, empty.TopIntents)

	for i := 0; i < 3; i++ {
		addUserTurn(t, m, testKey, "cuantos conductores", intent.CountDriver, true)
	}
	addUserTurn(t, m, testKey, "cosa rara", intent.Unknown, false)
	addUserTurn(t, m, testKey, "licencias", intent.LicenseExpiry, true)
	addUserTurn(t, m, testKey, "licencias", intent.LicenseExpiry, false)
	_, err = m.AddMessage(ctx, testKey, MessageInput{
		Sender:   conversation.SenderUser,
		Text:     "viajes a Medellín mañana",
		Intent:   intent.ListSchedule,
		Success:  true,
		Entities: map[string][]string{"locations": {"Medellín"}, "dates": {"mañana"}, "temporal": {"mañana"}, "numbers": {}},
	})
	require.NoError(t, err)

	stats, err := m.GetLearningStats(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalInteractions)
	assert.Equal(t, 5, stats.SuccessfulInteractions)
	assert.Equal(t, 71, stats.SuccessRate)
	require.Len(t, stats.TopIntents, 4)
	assert.Equal(t, IntentStat{Intent: intent.CountDriver, SuccessRate: 100, Total: 3}, stats.TopIntents[0])
	assert.Equal(t, IntentStat{Intent: intent.ListSchedule, SuccessRate: 100, Total: 1}, stats.TopIntents[1])
	assert.Equal(t, IntentStat{Intent: intent.LicenseExpiry, SuccessRate: 50, Total: 2}, stats.TopIntents[2])
	assert.Equal(t, []IntentStat{{Intent: intent.Unknown, SuccessRate: 0, Total: 1}}, stats.ImprovementAreas)
	assert.Equal(t, []conversation.Count{
		{Name: "dates", Count: 1}, {Name: "locations", Count: 1}, {Name: "temporal", Count: 1},
	}, stats.TopEntityTypes)
}

func TestMemoryService_Forget(t *testing.T) {
	t.Parallel()

	sched := &recordingScheduler{}
	m, repo := newMemory(t, clockwork.NewFakeClockAt(t0), sched)
	ctx := context.Background()

	addUserTurn(t, m, testKey, "hola", intent.Greeting, true)
	require.NoError(t, m.Forget(ctx, testKey))
	assert.Zero(t, repo.Len())
	assert.Equal(t, []conversation.Key{testKey}, sched.Deleted())
	require.NoError(t, m.Forget(ctx, testKey))
	require.ErrorIs(t, m.Forget(ctx, conversation.Key{}), conversation.ErrInvalidKey)
}

func TestMemoryService_ConcurrentTurnsAreSerialised(t *testing.T) {
	t.Parallel()

	m, _ := newMemory(t, clockwork.NewFakeClockAt(t0), nil)
	const turns = 40

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.AddMessage(context.Background(), testKey, MessageInput{
				Sender:  conversation.SenderUser,
				Text:    fmt.Sprintf("consulta %d", i),
				Intent:  intent.CountVehicle,
				Success: true,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats, err := m.GetLearningStats(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, turns, stats.TotalInteractions)
	assert.Zero(t, m.locks.size())
}

func TestMemoryService_Restore(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	sched := &recordingScheduler{}
	m, repo := newMemory(t, clock, sched)

	fresh := conversation.New(conversation.Key{UserID: 1, CompanyID: 42}, t0.Add(-time.Hour))
	stale := conversation.New(conversation.Key{UserID: 2, CompanyID: 42}, t0.Add(-48*time.Hour))
	store := newFakeSnapshotStore()
	store.snapshot.Memories[fresh.Key] = fresh
	store.snapshot.Memories[stale.Key] = stale

	restored, err := m.Restore(context.Background(), store, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.Equal(t, 1, repo.Len())
	assert.Equal(t, []conversation.Key{stale.Key}, sched.Deleted())
}
