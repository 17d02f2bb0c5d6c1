package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// RedisConfig configures the Redis checkpoint backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	Password string
	Database int

	// Prefix is prepended to all checkpoint keys (e.g., "vrsindex:checkpoints:")
	Prefix string

	// TTL is the time-to-live for checkpoint keys (0 = no expiration)
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration
}

// RedisBackend stores checkpoints in Redis. Incomplete ids are also kept in
// a set so ListIncomplete does not scan the keyspace.
type RedisBackend struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisBackend connects to Redis and pings it.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "connect to redis").
			WithContext("address", cfg.Address)
	}

	return &RedisBackend{cfg: cfg, client: client}, nil
}

func (b *RedisBackend) key(id string) string {
	return b.cfg.Prefix + id
}

func (b *RedisBackend) incompleteSetKey() string {
	return b.cfg.Prefix + "incomplete"
}

// Save writes the checkpoint and updates the incomplete set in one transaction.
func (b *RedisBackend) Save(ctx context.Context, cp *Checkpoint) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(cp)
	if err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "marshal checkpoint")
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.key(cp.ID), data, b.cfg.TTL)
	if cp.Done() {
		pipe.SRem(ctx, b.incompleteSetKey(), cp.ID)
	} else {
		pipe.SAdd(ctx, b.incompleteSetKey(), cp.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "save checkpoint to redis").
			WithContext("id", cp.ID)
	}
	return nil
}

// Load retrieves a checkpoint from Redis.
func (b *RedisBackend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	data, err := b.client.Get(ctx, b.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, os.ErrNotExist
		}
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "load checkpoint from redis").
			WithContext("id", id)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "unmarshal checkpoint").WithContext("id", id)
	}
	return &cp, nil
}

// Delete removes a checkpoint from Redis.
func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	pipe := b.client.TxPipeline()
	pipe.Del(ctx, b.key(id))
	pipe.SRem(ctx, b.incompleteSetKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "delete checkpoint from redis").
			WithContext("id", id)
	}
	return nil
}

// List scans for checkpoint keys with the given id prefix.
func (b *RedisBackend) List(ctx context.Context, prefix string) ([]*Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	var ids []string
	iter := b.client.Scan(ctx, 0, b.cfg.Prefix+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if key == b.incompleteSetKey() {
			continue
		}
		ids = append(ids, strings.TrimPrefix(key, b.cfg.Prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "scan checkpoint keys")
	}

	var checkpoints []*Checkpoint
	for _, id := range ids {
		cp, err := b.Load(ctx, id)
		if err != nil {
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	sortByID(checkpoints)
	return checkpoints, nil
}

// ListIncomplete reads the incomplete set and prunes stale members.
func (b *RedisBackend) ListIncomplete(ctx context.Context) ([]*Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	ids, err := b.client.SMembers(ctx, b.incompleteSetKey()).Result()
	if err != nil {
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "read incomplete checkpoints")
	}

	var checkpoints []*Checkpoint
	for _, id := range ids {
		cp, err := b.Load(ctx, id)
		if err != nil || cp.Done() {
			b.client.SRem(ctx, b.incompleteSetKey(), id)
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	sortByID(checkpoints)
	return checkpoints, nil
}

// Name returns "redis".
func (b *RedisBackend) Name() string {
	return "redis"
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
