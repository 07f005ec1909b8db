package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
	"github.com/flotatrack/fleet-assistant/pkg/metrics"
)

const defaultSnapshotTimeout = 5 * time.Second

type SnapshotWriterConfig struct {
	Store  conversation.SnapshotStore
	Repo   conversation.Repository
	Logger *logrus.Entry
	// Timeout bounds a single write.
	Timeout time.Duration
}

// SnapshotWriter coalesces dirty keys and writes them to the snapshot store
// on its own goroutine. Failures are logged and counted, never returned to
// the request path.
type SnapshotWriter struct {
	store   conversation.SnapshotStore
	repo    conversation.Repository
	logger  *logrus.Entry
	timeout time.Duration

	mu      sync.Mutex
	pending map[conversation.Key]bool // true when deleted
	notify  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func NewSnapshotWriter(config SnapshotWriterConfig) *SnapshotWriter {
	w := &SnapshotWriter{
		store:   config.Store,
		repo:    config.Repo,
		logger:  config.Logger,
		timeout: config.Timeout,
		pending: map[conversation.Key]bool{},
		notify:  make(chan struct{}, 1),
	}
	if w.logger == nil {
		w.logger = logging.Nop()
	}
	if w.timeout <= 0 {
		w.timeout = defaultSnapshotTimeout
	}
	return w
}

func (w *SnapshotWriter) MarkDirty(key conversation.Key) {
	w.mu.Lock()
	w.pending[key] = false
	w.mu.Unlock()
	w.wake()
}

func (w *SnapshotWriter) MarkDeleted(keys ...conversation.Key) {
	if len(keys) == 0 {
		return
	}
	w.mu.Lock()
	for _, key := range keys {
		w.pending[key] = true
	}
	w.mu.Unlock()
	w.wake()
}

func (w *SnapshotWriter) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of keys waiting to be written.
func (w *SnapshotWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *SnapshotWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(w.stop, w.done)
}

// Stop flushes what is pending and waits for the writer goroutine to exit.
func (w *SnapshotWriter) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stop, done := w.stop, w.done
	w.mu.Unlock()

	close(stop)
	<-done
}

func (w *SnapshotWriter) loop(stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			w.flushLogged()
			return
		case <-w.notify:
			w.flushLogged()
		}
	}
}

func (w *SnapshotWriter) flushLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.Flush(ctx); err != nil {
		w.logger.WithError(err).Warn("conversation snapshot write failed")
	}
}

// Flush writes every pending key now. Keys whose write failed stay pending
// unless they were marked again meanwhile.
func (w *SnapshotWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = map[conversation.Key]bool{}
	w.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	upserts := make([]*conversation.Record, 0, len(batch))
	deletes := []conversation.Key{}
	for key, deleted := range batch {
		if deleted {
			deletes = append(deletes, key)
			continue
		}
		record, err := w.repo.Get(ctx, key)
		switch {
		case errors.Is(err, conversation.ErrRecordNotFound):
			deletes = append(deletes, key)
		case err != nil:
			metrics.SnapshotFailed("read")
			w.logger.WithError(err).WithField("key", key.String()).Warn("conversation snapshot read failed")
		default:
			upserts = append(upserts, record)
		}
	}

	if err := w.store.Write(ctx, upserts, deletes); err != nil {
		metrics.SnapshotFailed("write")
		w.requeue(batch)
		return err
	}
	w.logger.WithFields(logrus.Fields{
		"upserts": len(upserts),
		"deletes": len(deletes),
	}).Debug("conversation snapshot written")
	return nil
}

func (w *SnapshotWriter) requeue(batch map[conversation.Key]bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, deleted := range batch {
		if _, marked := w.pending[key]; !marked {
			w.pending[key] = deleted
		}
	}
}
