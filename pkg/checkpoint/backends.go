package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vrsindex/vrsindex/pkg/config"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// Backend defines the interface for checkpoint storage backends.
// Load returns an error matching os.ErrNotExist for unknown ids.
type Backend interface {
	// Save persists a checkpoint to the backend.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load retrieves a checkpoint by ID.
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// Delete removes a checkpoint. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all checkpoints whose id starts with prefix.
	List(ctx context.Context, prefix string) ([]*Checkpoint, error)

	// ListIncomplete returns all checkpoints that haven't completed.
	ListIncomplete(ctx context.Context) ([]*Checkpoint, error)

	// Name returns the backend name for logging.
	Name() string

	Close() error
}

// Open builds the backend selected by cfg.
func Open(ctx context.Context, cfg config.CheckpointConfig) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case config.BackendLocal, "":
		b, err = NewLocalBackend(cfg.Dir)
	case config.BackendRedis:
		b, err = NewRedisBackend(ctx, RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			Database: cfg.Redis.Database,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
			Timeout:  cfg.Redis.Timeout,
		})
	case config.BackendS3:
		b, err = NewS3Backend(ctx, S3Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			Timeout:         cfg.S3.Timeout,
		})
	default:
		return nil, vrserrors.New(vrserrors.CodeConfig, "unknown checkpoint backend").
			WithContext("backend", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func incomplete(all []*Checkpoint) []*Checkpoint {
	var out []*Checkpoint
	for _, cp := range all {
		if !cp.Done() {
			out = append(out, cp)
		}
	}
	return out
}

func sortByID(cps []*Checkpoint) {
	sort.Slice(cps, func(i, j int) bool { return cps[i].ID < cps[j].ID })
}

// LocalBackend stores one JSON file per checkpoint in a directory.
type LocalBackend struct {
	dir string
}

const localExt = ".checkpoint"

// NewLocalBackend creates a backend using local filesystem.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "create checkpoint directory").
			WithContext("dir", dir)
	}
	return &LocalBackend{dir: dir}, nil
}

func (b *LocalBackend) path(id string) string {
	return filepath.Join(b.dir, id+localExt)
}

// Save writes to a temp file, syncs it and renames it over the old file.
func (b *LocalBackend) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "marshal checkpoint")
	}

	tmp, err := os.CreateTemp(b.dir, cp.ID+".*.tmp")
	if err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "create temp checkpoint")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "write checkpoint")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "sync checkpoint")
	}
	if err := tmp.Close(); err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "close checkpoint")
	}
	if err := os.Rename(tmp.Name(), b.path(cp.ID)); err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "rename checkpoint")
	}
	return nil
}

// Load retrieves a checkpoint from local filesystem.
func (b *LocalBackend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := os.ReadFile(b.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "read checkpoint").WithContext("id", id)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "unmarshal checkpoint").WithContext("id", id)
	}
	return &cp, nil
}

// Delete removes a checkpoint from local filesystem.
func (b *LocalBackend) Delete(ctx context.Context, id string) error {
	if err := os.Remove(b.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "delete checkpoint").WithContext("id", id)
	}
	return nil
}

// List returns all checkpoints with the given prefix. Unreadable files are skipped.
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]*Checkpoint, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "list checkpoints")
	}

	var checkpoints []*Checkpoint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != localExt || !strings.HasPrefix(name, prefix) {
			continue
		}
		cp, err := b.Load(ctx, strings.TrimSuffix(name, localExt))
		if err != nil {
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	sortByID(checkpoints)
	return checkpoints, nil
}

// ListIncomplete returns all incomplete checkpoints.
func (b *LocalBackend) ListIncomplete(ctx context.Context) ([]*Checkpoint, error) {
	all, err := b.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return incomplete(all), nil
}

// Name returns "local".
func (b *LocalBackend) Name() string {
	return "local"
}

// Close is a no-op.
func (b *LocalBackend) Close() error { return nil }
