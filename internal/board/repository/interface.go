// Package repository defines the board document store contract shared by
// the memory, SQL, MongoDB and cached backends.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// ErrBoardNotFound is returned by Load, Save and Delete for an unknown id.
var ErrBoardNotFound = errors.New("board not found")

// Repository stores whole board documents.
//
// Save replaces the stored document atomically. Concurrent saves of the
// same board are not merged: the last one to complete wins. Whatever Save
// stores is exactly what the next Load returns. Implementations never hand
// out memory shared with their own state.
type Repository interface {
	// Create stores a new board, filling in the id, timestamps and any
	// omitted defaults.
	Create(ctx context.Context, board *v1.Board) (*v1.Board, error)
	Load(ctx context.Context, id string) (*v1.Board, error)
	Save(ctx context.Context, board *v1.Board) (*v1.Board, error)
	Delete(ctx context.Context, id string) error
	// List returns all boards, newest first.
	List(ctx context.Context) ([]*v1.Board, error)
	Close() error
}

// PrepareNew returns a copy of b ready to be inserted: a fresh uuid when
// the id is empty, the default name, the three default columns when none
// are given, an empty user set when none is given, and both timestamps set
// to now.
func PrepareNew(b *v1.Board, now time.Time) *v1.Board {
	out := b.Clone()
	if out == nil {
		out = &v1.Board{}
	}
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.Name == "" {
		out.Name = v1.DefaultBoardName
	}
	if out.Columns == nil {
		out.Columns = v1.DefaultColumns()
	}
	for i := range out.Columns {
		if out.Columns[i].Tasks == nil {
			out.Columns[i].Tasks = []v1.Task{}
		}
	}
	if out.Users == nil {
		out.Users = []v1.User{}
	}
	out.CreatedAt = now
	out.UpdatedAt = now
	return out
}

// Now is the timestamp used for stored boards: UTC at millisecond
// precision, which every backend round-trips exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
