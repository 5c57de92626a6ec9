package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mmrzaf/bondgen/internal/domain"
)

const (
	redisKeyPrefix   = "bondgen:ledger:"
	redisEntitiesKey = "bondgen:ledger-entities"
)

// RedisRepository keeps one list per entity (msgpack encoded batches,
// oldest first) plus a set of entities that have batches.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository parses a redis:// URL.
func NewRedisRepository(redisURL string) (*RedisRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return NewRedisRepositoryWithClient(redis.NewClient(opts)), nil
}

func NewRedisRepositoryWithClient(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func batchKey(entity domain.EntityID) string {
	return redisKeyPrefix + string(entity)
}

func (r *RedisRepository) Append(ctx context.Context, entity domain.EntityID, ids []string) error {
	payload, err := msgpack.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, batchKey(entity), payload)
		p.SAdd(ctx, redisEntitiesKey, string(entity))
		return nil
	})
	if err != nil {
		return fmt.Errorf("append batch: %w", err)
	}
	return nil
}

func (r *RedisRepository) Batches(ctx context.Context, entity domain.EntityID) ([][]string, error) {
	raw, err := r.client.LRange(ctx, batchKey(entity), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read batches: %w", err)
	}
	out := make([][]string, 0, len(raw))
	for _, item := range raw {
		ids, err := decodeBatch(item)
		if err != nil {
			return nil, fmt.Errorf("decode batch of %s: %w", entity, err)
		}
		out = append(out, ids)
	}
	return out, nil
}

func (r *RedisRepository) PopLast(ctx context.Context, entity domain.EntityID) ([]string, error) {
	raw, err := r.client.RPop(ctx, batchKey(entity)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop batch: %w", err)
	}
	n, err := r.client.LLen(ctx, batchKey(entity)).Result()
	if err != nil {
		return nil, fmt.Errorf("pop batch: %w", err)
	}
	if n == 0 {
		if err := r.client.SRem(ctx, redisEntitiesKey, string(entity)).Err(); err != nil {
			return nil, fmt.Errorf("pop batch: %w", err)
		}
	}
	return decodeBatch(raw)
}

func (r *RedisRepository) Clear(ctx context.Context, entity domain.EntityID) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, batchKey(entity))
		p.SRem(ctx, redisEntitiesKey, string(entity))
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear batches: %w", err)
	}
	return nil
}

func (r *RedisRepository) Entities(ctx context.Context) ([]domain.EntityID, error) {
	names, err := r.client.SMembers(ctx, redisEntitiesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	sort.Strings(names)
	out := make([]domain.EntityID, len(names))
	for i, n := range names {
		out[i] = domain.EntityID(n)
	}
	return out, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func decodeBatch(raw string) ([]string, error) {
	var ids []string
	if err := msgpack.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
