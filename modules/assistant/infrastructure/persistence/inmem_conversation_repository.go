package persistence

import (
	"context"
	"time"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
)

// InmemConversationRepository keeps records in process. It stores and hands
// out clones so callers never share a record.
type InmemConversationRepository struct {
	storage *SafeMap[conversation.Key, *conversation.Record]
}

func NewInmemConversationRepository() *InmemConversationRepository {
	return &InmemConversationRepository{
		storage: NewSafeMap[conversation.Key, *conversation.Record](),
	}
}

func (r *InmemConversationRepository) Get(_ context.Context, key conversation.Key) (*conversation.Record, error) {
	record, found := r.storage.Get(key)
	if !found {
		return nil, conversation.ErrRecordNotFound
	}
	return record.Clone(), nil
}

func (r *InmemConversationRepository) Put(_ context.Context, record *conversation.Record) error {
	if record == nil || !record.Key.Valid() {
		return conversation.ErrInvalidKey
	}
	r.storage.Set(record.Key, record.Clone())
	return nil
}

func (r *InmemConversationRepository) Delete(_ context.Context, key conversation.Key) error {
	r.storage.Delete(key)
	return nil
}

func (r *InmemConversationRepository) List(_ context.Context) ([]*conversation.Record, error) {
	all := r.storage.Values()
	records := make([]*conversation.Record, 0, len(all))
	for _, record := range all {
		records = append(records, record.Clone())
	}
	return records, nil
}

func (r *InmemConversationRepository) Sweep(_ context.Context, cutoff time.Time) ([]conversation.Key, error) {
	return r.storage.DeleteFunc(func(_ conversation.Key, record *conversation.Record) bool {
		return record.Expired(cutoff)
	}), nil
}

func (r *InmemConversationRepository) Len() int {
	return r.storage.Len()
}
