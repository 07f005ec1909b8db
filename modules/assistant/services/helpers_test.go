package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/intent"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/persistence"
	"github.com/flotatrack/fleet-assistant/pkg/application"
)

var t0 = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

var testKey = conversation.Key{UserID: 7, CompanyID: 42}

type recordingScheduler struct {
	mu      sync.Mutex
	dirty   []conversation.Key
	deleted []conversation.Key
}

func (r *recordingScheduler) MarkDirty(key conversation.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = append(r.dirty, key)
}

func (r *recordingScheduler) MarkDeleted(keys ...conversation.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, keys...)
}

func (r *recordingScheduler) Deleted() []conversation.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]conversation.Key(nil), r.deleted...)
}

type fakeSnapshotStore struct {
	mu       sync.Mutex
	snapshot conversation.Snapshot
	upserts  map[conversation.Key]*conversation.Record
	deletes  []conversation.Key
	writes   int
	fail     error
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{
		snapshot: conversation.Snapshot{Memories: map[conversation.Key]*conversation.Record{}},
		upserts:  map[conversation.Key]*conversation.Record{},
	}
}

func (f *fakeSnapshotStore) Load(context.Context) (conversation.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, nil
}

func (f *fakeSnapshotStore) Write(_ context.Context, upserts []*conversation.Record, deletes []conversation.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.writes++
	for _, r := range upserts {
		f.upserts[r.Key] = r
	}
	for _, k := range deletes {
		delete(f.upserts, k)
	}
	f.deletes = append(f.deletes, deletes...)
	return nil
}

func (f *fakeSnapshotStore) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeSnapshotStore) stored(key conversation.Key) (*conversation.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.upserts[key]
	return r, ok
}

func newMemory(t *testing.T, clock clockwork.Clock, snapshots SnapshotScheduler) (*MemoryService, *persistence.InmemConversationRepository) {
	t.Helper()
	repo := persistence.NewInmemConversationRepository()
	return NewMemoryService(MemoryServiceConfig{
		Repo:      repo,
		Snapshots: snapshots,
		Clock:     clock,
	}), repo
}

func addUserTurn(t *testing.T, m *MemoryService, key conversation.Key, text string, in intent.Intent, success bool) {
	t.Helper()
	_, err := m.AddMessage(context.Background(), key, MessageInput{
		Sender:     conversation.SenderUser,
		Text:       text,
		Intent:     in,
		Success:    success,
		Confidence: 0.8,
	})
	require.NoError(t, err)
}

func newTestResponder(t *testing.T) *Responder {
	t.Helper()
	bundle := application.LoadBundle()
	bundle.MustLoadMessageFile("../presentation/locales/es.json")
	return NewResponder(bundle, nil)
}
