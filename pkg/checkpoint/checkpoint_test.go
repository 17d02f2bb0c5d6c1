package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsindex/vrsindex/pkg/config"
)

func TestIDFor(t *testing.T) {
	a := IDFor("in.vcf", "out.txt")
	assert.Equal(t, a, IDFor("./in.vcf", "out.txt"), "relative spellings of one path agree")
	assert.NotEqual(t, a, IDFor("in.vcf", "other.txt"))
	assert.NotEqual(t, a, IDFor("out.txt", "in.vcf"))
	assert.Len(t, a, len("cp_")+24)
}

func TestCheckpoint_Lifecycle(t *testing.T) {
	cp := New("run-1", "in.vcf", "out.txt")
	assert.Equal(t, PhaseRunning, cp.Phase)
	assert.True(t, cp.Writes("./out.txt"))
	assert.False(t, cp.Writes("in.vcf"))

	cp.Update(10, 2, 15, 15, 600)
	assert.Equal(t, uint64(15), cp.NextCounter)
	assert.False(t, cp.Detached)
	cp.Detach()
	assert.True(t, cp.Detached)

	cp.Complete()
	assert.True(t, cp.Done())
	require.NotNil(t, cp.CompletedAt)
	assert.GreaterOrEqual(t, cp.Duration(), time.Duration(0))
}

// exerciseBackend runs the behavior every backend shares.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Load(ctx, "cp_missing")
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	running := New("run-1", "a.vcf", "out.txt")
	running.Update(100, 1, 120, 120, 4096)
	require.NoError(t, b.Save(ctx, running))

	done := New("run-2", "b.vcf", "out.txt")
	done.Complete()
	require.NoError(t, b.Save(ctx, done))

	loaded, err := b.Load(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, running.RunID, loaded.RunID)
	assert.Equal(t, int64(100), loaded.RecordsRead)
	assert.Equal(t, uint64(120), loaded.NextCounter)
	assert.Equal(t, int64(4096), loaded.OutputBytes)
	assert.False(t, loaded.Detached)
	assert.True(t, running.StartedAt.Equal(loaded.StartedAt))

	all, err := b.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := b.ListIncomplete(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, running.ID, open[0].ID)

	running.Complete()
	require.NoError(t, b.Save(ctx, running))
	open, err = b.ListIncomplete(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	require.NoError(t, b.Delete(ctx, running.ID))
	require.NoError(t, b.Delete(ctx, running.ID))
	_, err = b.Load(ctx, running.ID)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, b.Close())
}

func TestLocalBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoints")
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)
	assert.Equal(t, "local", b.Name())

	exerciseBackend(t, b)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, localExt, filepath.Ext(e.Name()), "no temp files left behind")
	}
}

func TestLocalBackend_SkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewLocalBackend(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cp_bad"+localExt), []byte("{"), 0o644))
	require.NoError(t, b.Save(context.Background(), New("run", "x.vcf", "y.txt")))

	all, err := b.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = b.Load(context.Background(), "cp_bad")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	b, err := NewRedisBackend(context.Background(), RedisConfig{
		Address: mr.Addr(),
		Prefix:  "test:cp:",
		TTL:     time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "redis", b.Name())

	exerciseBackend(t, b)
}

func TestRedisBackend_PrunesStaleIncompleteMembers(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBackend(context.Background(), RedisConfig{Address: mr.Addr(), Prefix: "p:"})
	require.NoError(t, err)
	defer b.Close()

	_, err = mr.SAdd("p:incomplete", "cp_gone")
	require.NoError(t, err)

	open, err := b.ListIncomplete(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)

	members, _ := mr.Members("p:incomplete")
	assert.Empty(t, members)
}

func TestRedisBackend_ConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisBackend(context.Background(), RedisConfig{Address: addr, Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	b, err := Open(context.Background(), config.CheckpointConfig{Backend: config.BackendLocal, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", b.Name())

	mr := miniredis.RunT(t)
	b, err = Open(context.Background(), config.CheckpointConfig{
		Backend: config.BackendRedis,
		Redis:   config.RedisConfig{Address: mr.Addr(), Prefix: "x:"},
	})
	require.NoError(t, err)
	assert.Equal(t, "redis", b.Name())
	require.NoError(t, b.Close())

	_, err = Open(context.Background(), config.CheckpointConfig{Backend: "etcd"})
	assert.Error(t, err)
}
