// Package memory provides an in-process board store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kandev/taskboard/internal/board/repository"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// Repository keeps board documents in a map. Every value going in or out is
// deep-copied.
type Repository struct {
	mu     sync.RWMutex
	boards map[string]*v1.Board
}

var _ repository.Repository = (*Repository)(nil)

// New creates an empty in-memory repository.
func New() *Repository {
	return &Repository{boards: make(map[string]*v1.Board)}
}

// Create stores a new board.
func (r *Repository) Create(ctx context.Context, board *v1.Board) (*v1.Board, error) {
	b := repository.PrepareNew(board, repository.Now())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.boards[b.ID]; exists {
		return nil, fmt.Errorf("board already exists: %s", b.ID)
	}
	r.boards[b.ID] = b
	return b.Clone(), nil
}

// Load returns a copy of the stored board.
func (r *Repository) Load(ctx context.Context, id string) (*v1.Board, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.boards[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrBoardNotFound, id)
	}
	return b.Clone(), nil
}

// Save overwrites the stored board.
func (r *Repository) Save(ctx context.Context, board *v1.Board) (*v1.Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.boards[board.ID]; !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrBoardNotFound, board.ID)
	}
	stored := board.Clone()
	r.boards[board.ID] = stored
	return stored.Clone(), nil
}

// Delete removes a board.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.boards[id]; !ok {
		return fmt.Errorf("%w: %s", repository.ErrBoardNotFound, id)
	}
	delete(r.boards, id)
	return nil
}

// List returns all boards ordered by creation time, newest first.
func (r *Repository) List(ctx context.Context) ([]*v1.Board, error) {
	r.mu.RLock()
	out := make([]*v1.Board, 0, len(r.boards))
	for _, b := range r.boards {
		out = append(out, b.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Close is a no-op.
func (r *Repository) Close() error {
	return nil
}
