// Package reorder implements the drag-and-drop move used by both the server
// and the client mirror. Both sides call the same code so a move computed
// optimistically produces the same ordering the server persists.
package reorder

import (
	"errors"
	"fmt"
	"time"

	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// ErrIndexOutOfRange is returned when the source index does not address an
// element of the source sequence.
var ErrIndexOutOfRange = errors.New("source index out of range")

// ErrColumnNotFound is returned by MoveTask for an unknown column id.
var ErrColumnNotFound = errors.New("column not found")

// Clamp limits i to [0, n].
func Clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// Remove returns a new slice without the element at i, and that element.
// s is not modified.
func Remove[T any](s []T, i int) ([]T, T, error) {
	var zero T
	if i < 0 || i >= len(s) {
		return s, zero, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(s))
	}
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	out = append(out, s[i+1:]...)
	return out, s[i], nil
}

// Insert returns a new slice with v placed at i, clamped to [0, len(s)].
// s is not modified.
func Insert[T any](s []T, i int, v T) []T {
	i = Clamp(i, len(s))
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	out = append(out, s[i:]...)
	return out
}

// Move removes the element at srcIdx from src and inserts it at dstIdx. When
// same is true dst is ignored and the element goes back into the shortened
// src, which is a single-list reorder and not a swap. The returned slices
// are fresh; inputs are never modified.
func Move[T any](src, dst []T, srcIdx, dstIdx int, same bool) (newSrc, newDst []T, moved T, err error) {
	newSrc, moved, err = Remove(src, srcIdx)
	if err != nil {
		return src, dst, moved, err
	}
	if same {
		newSrc = Insert(newSrc, dstIdx, moved)
		return newSrc, newSrc, moved, nil
	}
	return newSrc, Insert(dst, dstIdx, moved), moved, nil
}

// MoveTask applies a drag on board b in place. It returns false with no
// changes when the task is dropped where it started. The moved task's
// UpdatedAt is set to now.
func MoveTask(b *v1.Board, srcColID, dstColID string, srcIdx, dstIdx int, now time.Time) (*v1.Task, bool, error) {
	if srcColID == dstColID && srcIdx == dstIdx {
		return nil, false, nil
	}
	si := b.ColumnIndex(srcColID)
	if si < 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrColumnNotFound, srcColID)
	}
	di := b.ColumnIndex(dstColID)
	if di < 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrColumnNotFound, dstColID)
	}

	same := si == di
	newSrc, newDst, moved, err := Move(b.Columns[si].Tasks, b.Columns[di].Tasks, srcIdx, dstIdx, same)
	if err != nil {
		return nil, false, err
	}

	moved.UpdatedAt = now
	// moved is a copy; write the timestamp back into its new slot.
	pos := Clamp(dstIdx, len(newDst)-1)
	newDst[pos] = moved

	b.Columns[si].Tasks = newSrc
	if !same {
		b.Columns[di].Tasks = newDst
	}
	out := moved.Clone()
	return &out, true, nil
}
