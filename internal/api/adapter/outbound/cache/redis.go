package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as JSON strings under "<prefix><id>" and tracks
// insertion order in a sorted set scored by a monotonically increasing counter.
// It is shared by every gateway instance pointing at the same Redis; concurrent
// writers resolve as last-writer-wins.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	indexKey string
	seqKey   string
}

var _ port.CacheStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		indexKey: prefix + "index",
		seqKey:   prefix + "seq",
	}
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.ModelRecord, error) {
	raw, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}

	var rec domain.ModelRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, record domain.ModelRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}

	seq, err := s.client.Incr(ctx, s.seqKey).Result()
	if err != nil {
		return fmt.Errorf("redis incr seq: %w", err)
	}

	// Value and index entry land together or not at all. ZADD NX keeps the
	// original insertion position when an existing ID is overwritten.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(record.ID), payload, 0)
		pipe.ZAddNX(ctx, s.indexKey, redis.Z{Score: float64(seq), Member: record.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", record.ID, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.recordKey(id))
		pipe.ZRem(ctx, s.indexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis remove %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) ListAll(ctx context.Context) ([]domain.ModelRecord, error) {
	members, err := s.client.ZRangeWithScores(ctx, s.indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list index: %w", err)
	}
	if len(members) == 0 {
		return []domain.ModelRecord{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.recordKey(fmt.Sprint(m.Member))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	items := make([]sequencedRecord, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Removed out-of-band between ZRANGE and MGET, or by another client.
			continue
		}
		var rec domain.ModelRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			logger.Warnw("Skipping undecodable cached record", "key", keys[i], "error", err.Error())
			continue
		}
		items = append(items, sequencedRecord{seq: uint64(members[i].Score), record: rec})
	}

	return orderRecords(items), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
