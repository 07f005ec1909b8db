package persistence

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/persistence/models"
)

var (
	memoriesBucket = []byte("memories")
	metaBucket     = []byte("meta")
	lastSavedKey   = []byte("last_saved")
)

// BoltSnapshotStore keeps one JSON document per conversation in a bbolt
// file. Writes are incremental: only changed and deleted keys are touched.
type BoltSnapshotStore struct {
	db  *bolt.DB
	now func() time.Time
}

func NewBoltSnapshotStore(path string) (*BoltSnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create snapshot dir for %s", path)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot file %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(memoriesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create snapshot buckets")
	}
	return &BoltSnapshotStore{db: db, now: time.Now}, nil
}

// Load reads every stored conversation. Malformed entries are skipped so a
// single bad document does not lose the whole snapshot.
func (s *BoltSnapshotStore) Load(_ context.Context) (conversation.Snapshot, error) {
	snapshot := conversation.Snapshot{Memories: map[conversation.Key]*conversation.Record{}}
	err := s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(metaBucket).Get(lastSavedKey); raw != nil {
			if err := snapshot.LastSaved.UnmarshalText(raw); err != nil {
				return errors.Wrap(err, "decode last saved")
			}
		}
		return tx.Bucket(memoriesBucket).ForEach(func(k, v []byte) error {
			var model models.Conversation
			if err := json.Unmarshal(v, &model); err != nil {
				return nil
			}
			record, err := ToDomainConversation(model)
			if err != nil {
				return nil
			}
			snapshot.Memories[record.Key] = record
			return nil
		})
	})
	if err != nil {
		return conversation.Snapshot{}, err
	}
	return snapshot, nil
}

func (s *BoltSnapshotStore) Write(_ context.Context, upserts []*conversation.Record, deletes []conversation.Key) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		memories := tx.Bucket(memoriesBucket)
		for _, key := range deletes {
			if err := memories.Delete([]byte(key.String())); err != nil {
				return err
			}
		}
		for _, record := range upserts {
			data, err := json.Marshal(ToDBConversation(record))
			if err != nil {
				return errors.Wrapf(err, "encode %s", record.Key)
			}
			if err := memories.Put([]byte(record.Key.String()), data); err != nil {
				return err
			}
		}
		stamp, err := s.now().UTC().MarshalText()
		if err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(lastSavedKey, stamp)
	})
}

// Export returns the whole store in its JSON shape.
func (s *BoltSnapshotStore) Export(ctx context.Context) (models.Snapshot, error) {
	snapshot, err := s.Load(ctx)
	if err != nil {
		return models.Snapshot{}, err
	}
	return ToDBSnapshot(snapshot), nil
}

func (s *BoltSnapshotStore) Close() error {
	return s.db.Close()
}
