// Package cache puts a Redis read-through cache in front of any board
// repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/common/logger"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

const keyPrefix = "taskboard:board:"

// putScript stores a board document in a hash next to its updatedAt stamp
// (unix ms) unless the cached stamp is newer. With ARGV[4] == "1" a cached
// entry with an equal stamp is kept as well.
//
// KEYS[1] cache key; ARGV[1] stamp; ARGV[2] document; ARGV[3] ttl in ms.
var putScript = redis.NewScript(`
local cached = redis.call('HGET', KEYS[1], 'stamp')
if cached then
	cached = tonumber(cached)
	local incoming = tonumber(ARGV[1])
	if cached > incoming or (ARGV[4] == '1' and cached == incoming) then
		return 0
	end
end
redis.call('HSET', KEYS[1], 'stamp', ARGV[1], 'doc', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// Repository caches boards in Redis in front of a backing store.
//
// Save writes the new document through to Redis; a Load fill only lands
// when nothing newer is cached, so a slow Load cannot put back a board a
// Save already replaced. When a Save loses the stamp comparison the entry
// is dropped and the next Load goes to the backing store. Redis failures
// never fail an operation.
type Repository struct {
	base   repository.Repository
	redis  *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

var _ repository.Repository = (*Repository)(nil)

// New wraps base. A nil client or zero ttl disables caching.
func New(base repository.Repository, client *redis.Client, ttl time.Duration, log *logger.Logger) *Repository {
	if base == nil {
		panic("cache.New: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if log == nil {
		log = logger.Default()
	}
	return &Repository{
		base:   base,
		redis:  client,
		ttl:    ttl,
		logger: log.WithFields(zap.String("component", "board-cache")),
	}
}

func cacheKey(id string) string {
	return keyPrefix + id
}

// Create stores through the backing repository and primes the cache.
func (r *Repository) Create(ctx context.Context, board *v1.Board) (*v1.Board, error) {
	b, err := r.base.Create(ctx, board)
	if err != nil {
		return nil, err
	}
	r.put(ctx, b, false)
	return b, nil
}

// Load serves from Redis when possible.
func (r *Repository) Load(ctx context.Context, id string) (*v1.Board, error) {
	if b, ok := r.lookup(ctx, id); ok {
		return b, nil
	}
	b, err := r.base.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	r.put(ctx, b, true)
	return b, nil
}

// Save writes through to the backing store, then to Redis.
func (r *Repository) Save(ctx context.Context, board *v1.Board) (*v1.Board, error) {
	b, err := r.base.Save(ctx, board)
	if err != nil {
		return nil, err
	}
	if !r.put(ctx, b, false) {
		r.evict(ctx, b.ID)
	}
	return b, nil
}

// Delete removes from the backing store and evicts.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.base.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

// List always reads the backing store.
func (r *Repository) List(ctx context.Context) ([]*v1.Board, error) {
	return r.base.List(ctx)
}

// Close closes the backing repository. The Redis client belongs to the caller.
func (r *Repository) Close() error {
	return r.base.Close()
}

func (r *Repository) lookup(ctx context.Context, id string) (*v1.Board, bool) {
	if r.redis == nil {
		return nil, false
	}
	data, err := r.redis.HGet(ctx, cacheKey(id), "doc").Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis get failed", zap.String("board_id", id), zap.Error(err))
			_ = r.redis.Del(ctx, cacheKey(id)).Err()
		}
		return nil, false
	}
	var b v1.Board
	if err := json.Unmarshal(data, &b); err != nil {
		_ = r.redis.Del(ctx, cacheKey(id)).Err()
		return nil, false
	}
	return &b, true
}

// put reports whether b is now the cached document. fill makes an entry
// with the same stamp win over b.
func (r *Repository) put(ctx context.Context, b *v1.Board, fill bool) bool {
	if r.redis == nil || r.ttl == 0 {
		return false
	}
	data, err := json.Marshal(b)
	if err != nil {
		return false
	}
	keepEqual := "0"
	if fill {
		keepEqual = "1"
	}
	stored, err := putScript.Run(ctx, r.redis, []string{cacheKey(b.ID)},
		b.UpdatedAt.UnixMilli(), data, r.ttl.Milliseconds(), keepEqual).Int()
	if err != nil {
		r.logger.Warn("redis set failed", zap.String("board_id", b.ID), zap.Error(err))
		return false
	}
	if stored == 0 {
		r.logger.Debug("newer board already cached", zap.String("board_id", b.ID), zap.Bool("fill", fill))
	}
	return stored == 1
}

func (r *Repository) evict(ctx context.Context, id string) {
	if r.redis == nil {
		return
	}
	if err := r.redis.Del(ctx, cacheKey(id)).Err(); err != nil {
		r.logger.Warn("redis evict failed", zap.String("board_id", id), zap.Error(err))
	}
}
