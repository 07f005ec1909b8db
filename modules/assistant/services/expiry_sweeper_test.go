package services

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
)

func TestExpirySweeper_SweepOnceRemovesExactlyExpired(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(t0)
	sched := &recordingScheduler{}
	memory, repo := newMemory(t, clock, nil)

	old := conversation.Key{UserID: 1, CompanyID: 42}
	boundary := conversation.Key{UserID: 2, CompanyID: 42}
	recent := conversation.Key{UserID: 3, CompanyID: 42}

	addUserTurn(t, memory, old, "hola", intent.Greeting, true)
	clock.Advance(time.Hour)
	addUserTurn(t, memory, boundary, "hola", intent.Greeting, true)
	clock.Advance(20 * time.Hour)
	addUserTurn(t, memory, recent, "hola", intent.Greeting, true)
	clock.Advance(4 * time.Hour)

	sweeper := NewExpirySweeper(ExpirySweeperConfig{
		Repo:      repo,
		Snapshots: sched,
		Clock:     clock,
		MaxAge:    24 * time.Hour,
	})
	keys, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []conversation.Key{old}, keys)
	assert.Equal(t, []conversation.Key{old}, sched.Deleted())
	assert.Equal(t, 2, repo.Len())

	keys, err = sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestExpirySweeper_RunsOnTicker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := clockwork.NewFakeClockAt(t0)
	memory, repo := newMemory(t, clock, nil)
	addUserTurn(t, memory, testKey, "hola", intent.Greeting, true)
	clock.Advance(24 * time.Hour)

	sweeper := NewExpirySweeper(ExpirySweeperConfig{
		Repo:     repo,
		Clock:    clock,
		Interval: time.Hour,
		MaxAge:   24 * time.Hour,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sweeper.Start(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 1, repo.Len())

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return repo.Len() == 0 }, time.Second, 5*time.Millisecond)

	sweeper.Stop()
	sweeper.Stop()
}
