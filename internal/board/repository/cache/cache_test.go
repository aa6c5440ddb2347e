package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/board/repository/memory"
	"github.com/kandev/taskboard/internal/board/repository/repositorytest"
	"github.com/kandev/taskboard/internal/common/logger"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// countingRepo records Load calls on top of the memory store.
type countingRepo struct {
	*memory.Repository
	loads  int
	loadFn func(ctx context.Context, id string) (*v1.Board, error)
}

func (c *countingRepo) Load(ctx context.Context, id string) (*v1.Board, error) {
	c.loads++
	if c.loadFn != nil {
		return c.loadFn(ctx, id)
	}
	return c.Repository.Load(ctx, id)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRepositoryContract(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) repository.Repository {
		_, client := newRedis(t)
		return New(memory.New(), client, time.Minute, logger.NewNop())
	})
}

func TestLoad_MissThenHit(t *testing.T) {
	mr, client := newRedis(t)
	base := &countingRepo{Repository: memory.New()}
	repo := New(base, client, time.Minute, logger.NewNop())
	ctx := context.Background()

	b, err := base.Create(ctx, &v1.Board{Name: "Cached"})
	require.NoError(t, err)

	first, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	second, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, base.loads)
	assert.Equal(t, first, second)
	ttl := mr.TTL(cacheKey(b.ID))
	assert.True(t, ttl > 0 && ttl <= time.Minute, "unexpected TTL %v", ttl)
}

func TestSave_WritesThrough(t *testing.T) {
	mr, client := newRedis(t)
	base := &countingRepo{Repository: memory.New()}
	repo := New(base, client, time.Minute, logger.NewNop())
	ctx := context.Background()

	b, err := repo.Create(ctx, &v1.Board{})
	require.NoError(t, err)
	assert.True(t, mr.Exists(cacheKey(b.ID)))

	b.Name = "Renamed"
	b.UpdatedAt = b.UpdatedAt.Add(time.Millisecond)
	_, err = repo.Save(ctx, b)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cacheKey(b.ID)))

	loaded, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.Equal(t, 0, base.loads)
}

func TestLoad_SlowFillDoesNotOverwriteSave(t *testing.T) {
	_, client := newRedis(t)
	base := &countingRepo{Repository: memory.New()}
	repo := New(base, client, time.Minute, logger.NewNop())
	ctx := context.Background()

	b, err := base.Create(ctx, &v1.Board{Name: "x"})
	require.NoError(t, err)

	read := make(chan struct{})
	resume := make(chan struct{})
	base.loadFn = func(ctx context.Context, id string) (*v1.Board, error) {
		got, err := base.Repository.Load(ctx, id)
		close(read)
		<-resume
		return got, err
	}

	done := make(chan error, 1)
	go func() {
		_, err := repo.Load(ctx, b.ID)
		done <- err
	}()

	// the Load has read "x" from the store and not yet filled the cache
	<-read
	renamed := b.Clone()
	renamed.Name = "renamed"
	renamed.UpdatedAt = b.UpdatedAt.Add(time.Millisecond)
	_, err = repo.Save(ctx, renamed)
	require.NoError(t, err)

	close(resume)
	require.NoError(t, <-done)
	base.loadFn = nil

	loaded, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.Name)
	assert.Equal(t, 1, base.loads)
}

func TestSave_OlderStampDropsEntry(t *testing.T) {
	mr, client := newRedis(t)
	base := &countingRepo{Repository: memory.New()}
	repo := New(base, client, time.Minute, logger.NewNop())
	ctx := context.Background()

	b, err := repo.Create(ctx, &v1.Board{Name: "first"})
	require.NoError(t, err)

	newer := b.Clone()
	newer.Name = "newer"
	newer.UpdatedAt = b.UpdatedAt.Add(time.Second)
	_, err = repo.Save(ctx, newer)
	require.NoError(t, err)

	// a save that finished later but carries an older stamp is still the
	// stored document; the cache must not keep serving "newer"
	older := b.Clone()
	older.Name = "older"
	_, err = repo.Save(ctx, older)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKey(b.ID)))

	loaded, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "older", loaded.Name)
	assert.Equal(t, 1, base.loads)
}

func TestDelete_Evicts(t *testing.T) {
	mr, client := newRedis(t)
	repo := New(memory.New(), client, time.Minute, logger.NewNop())
	ctx := context.Background()

	b, err := repo.Create(ctx, &v1.Board{})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, b.ID))
	assert.False(t, mr.Exists(cacheKey(b.ID)))

	_, err = repo.Load(ctx, b.ID)
	assert.ErrorIs(t, err, repository.ErrBoardNotFound)
}

func TestLoad_RedisDownFallsBack(t *testing.T) {
	mr, client := newRedis(t)
	base := &countingRepo{Repository: memory.New()}
	repo := New(base, client, time.Minute, logger.NewNop())
	ctx := context.Background()

	b, err := base.Create(ctx, &v1.Board{})
	require.NoError(t, err)
	mr.Close()

	loaded, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, loaded.ID)
}

func TestLoad_CorruptEntryIsDropped(t *testing.T) {
	mr, client := newRedis(t)
	base := &countingRepo{Repository: memory.New()}
	repo := New(base, client, time.Minute, logger.NewNop())
	ctx := context.Background()

	b, err := base.Create(ctx, &v1.Board{})
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(b.ID), "{not json"))

	loaded, err := repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, loaded.ID)
	assert.Equal(t, 1, base.loads)
}

func TestLoad_BackendErrorNotCached(t *testing.T) {
	mr, client := newRedis(t)
	boom := errors.New("backend down")
	base := &countingRepo{Repository: memory.New(), loadFn: func(context.Context, string) (*v1.Board, error) {
		return nil, boom
	}}
	repo := New(base, client, time.Minute, logger.NewNop())

	_, err := repo.Load(context.Background(), "b1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(cacheKey("b1")))
}

func TestNilClientPassesThrough(t *testing.T) {
	base := &countingRepo{Repository: memory.New()}
	repo := New(base, nil, time.Minute, nil)
	ctx := context.Background()

	b, err := repo.Create(ctx, &v1.Board{})
	require.NoError(t, err)
	_, err = repo.Load(ctx, b.ID)
	require.NoError(t, err)
	_, err = repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, base.loads)
}
