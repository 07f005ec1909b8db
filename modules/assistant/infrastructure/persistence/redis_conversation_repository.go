package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/persistence/models"
)

const DefaultRedisHash = "fleet-assistant:conversations:v1"

// RedisConversationRepository stores one JSON document per key in a single
// hash so every assistant instance shares the same memory.
type RedisConversationRepository struct {
	redis redis.UniversalClient
	hash  string
}

func NewRedisConversationRepository(client redis.UniversalClient, hash string) *RedisConversationRepository {
	if hash == "" {
		hash = DefaultRedisHash
	}
	return &RedisConversationRepository{redis: client, hash: hash}
}

func (r *RedisConversationRepository) Get(ctx context.Context, key conversation.Key) (*conversation.Record, error) {
	result, err := r.redis.HGet(ctx, r.hash, key.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, conversation.ErrRecordNotFound
		}
		return nil, errors.Wrapf(err, "redis hget %s", key)
	}
	return decodeConversation([]byte(result))
}

func (r *RedisConversationRepository) Put(ctx context.Context, record *conversation.Record) error {
	if record == nil || !record.Key.Valid() {
		return conversation.ErrInvalidKey
	}
	data, err := json.Marshal(ToDBConversation(record))
	if err != nil {
		return err
	}
	if err := r.redis.HSet(ctx, r.hash, record.Key.String(), data).Err(); err != nil {
		return errors.Wrapf(err, "redis hset %s", record.Key)
	}
	return nil
}

func (r *RedisConversationRepository) Delete(ctx context.Context, key conversation.Key) error {
	return r.redis.HDel(ctx, r.hash, key.String()).Err()
}

func (r *RedisConversationRepository) List(ctx context.Context) ([]*conversation.Record, error) {
	resultMap, err := r.redis.HGetAll(ctx, r.hash).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis hgetall")
	}
	records := make([]*conversation.Record, 0, len(resultMap))
	for _, value := range resultMap {
		record, err := decodeConversation([]byte(value))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Sweep deletes expired records. Undecodable entries are removed as well.
func (r *RedisConversationRepository) Sweep(ctx context.Context, cutoff time.Time) ([]conversation.Key, error) {
	resultMap, err := r.redis.HGetAll(ctx, r.hash).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis hgetall")
	}
	var fields []string
	var removed []conversation.Key
	for field, value := range resultMap {
		record, err := decodeConversation([]byte(value))
		if err == nil && !record.Expired(cutoff) {
			continue
		}
		fields = append(fields, field)
		if key, err := conversation.ParseKey(field); err == nil {
			removed = append(removed, key)
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	if err := r.redis.HDel(ctx, r.hash, fields...).Err(); err != nil {
		return nil, errors.Wrap(err, "redis hdel")
	}
	return removed, nil
}

func decodeConversation(data []byte) (*conversation.Record, error) {
	var model models.Conversation
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, errors.Wrap(err, "decode conversation")
	}
	return ToDomainConversation(model)
}
