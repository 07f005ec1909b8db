package services

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
	"github.com/flotatrack/fleet-assistant/pkg/metrics"
)

const (
	DefaultMaxAge        = 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

type ExpirySweeperConfig struct {
	Repo      conversation.Repository
	Snapshots SnapshotScheduler
	Clock     clockwork.Clock
	Interval  time.Duration
	MaxAge    time.Duration
	Logger    *logrus.Entry
}

// ExpirySweeper periodically deletes records whose newest message is older
// than MaxAge. It does not take the memory key locks: a record updated while
// it is being evicted may be lost.
type ExpirySweeper struct {
	repo      conversation.Repository
	snapshots SnapshotScheduler
	clock     clockwork.Clock
	interval  time.Duration
	maxAge    time.Duration
	logger    *logrus.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewExpirySweeper(config ExpirySweeperConfig) *ExpirySweeper {
	s := &ExpirySweeper{
		repo:      config.Repo,
		snapshots: config.Snapshots,
		clock:     config.Clock,
		interval:  config.Interval,
		maxAge:    config.MaxAge,
		logger:    config.Logger,
	}
	if s.snapshots == nil {
		s.snapshots = nopScheduler{}
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.interval <= 0 {
		s.interval = DefaultSweepInterval
	}
	if s.maxAge <= 0 {
		s.maxAge = DefaultMaxAge
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	return s
}

// SweepOnce deletes the expired records and returns their keys.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) ([]conversation.Key, error) {
	cutoff := s.clock.Now().Add(-s.maxAge)
	keys, err := s.repo.Sweep(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	metrics.SweepEvicted(len(keys))
	s.snapshots.MarkDeleted(keys...)
	if records, err := s.repo.List(ctx); err == nil {
		metrics.SetMemoryRecords(len(records))
	}
	if len(keys) > 0 {
		s.logger.WithFields(logrus.Fields{
			"evicted": len(keys),
			"cutoff":  cutoff,
		}).Info("expired conversations removed")
	}
	return keys, nil
}

func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	ticker := s.clock.NewTicker(s.interval)
	go s.run(ctx, ticker, s.done)
}

func (s *ExpirySweeper) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Warn("conversation expiry sweep failed")
		}
	}
}

// Stop cancels the loop and waits for it to exit. It is safe to call more
// than once.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
