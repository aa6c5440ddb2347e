// Package store keeps a client-side mirror of one board. Mutations are
// applied to the mirror immediately, sent to the remote, and then either
// replaced by the canonical board the remote returns or rolled back to the
// snapshot taken before they started.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
	"github.com/kandev/taskboard/pkg/reorder"
)

// Remote is the server side of the board. *client.Client implements it.
type Remote interface {
	FetchBoard(ctx context.Context, id string) (*v1.Board, error)
	CreateBoard(ctx context.Context, req *v1.CreateBoardRequest) (*v1.Board, error)
	AddTask(ctx context.Context, req *v1.AddTaskRequest) (*v1.TaskResult, error)
	UpdateTask(ctx context.Context, req *v1.UpdateTaskRequest) (*v1.TaskResult, error)
	DeleteTask(ctx context.Context, req *v1.DeleteTaskRequest) (*v1.DeleteTaskResult, error)
	MoveTask(ctx context.Context, req *v1.MoveTaskRequest) (*v1.MoveTaskResult, error)
}

// Options configures the board created by Load when no id is given.
type Options struct {
	BoardName string
	SeedUsers []v1.User
}

// DefaultSeedUsers are the users of a freshly created board.
func DefaultSeedUsers() []v1.User {
	return []v1.User{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}}
}

// Store owns the mirror of one board. It is safe for concurrent use, but
// two overlapping mutations may each observe the other's optimistic state
// and a rollback restores the snapshot its own mutation took.
type Store struct {
	remote Remote
	logger *logger.Logger
	opts   Options
	now    func() time.Time

	mu        sync.Mutex
	board     *v1.Board
	loading   bool
	err       error
	tempSeq   int
	listeners map[int]func(*v1.Board)
	nextID    int
}

// New creates an empty store. Call Load before mutating.
func New(remote Remote, log *logger.Logger, opts Options) *Store {
	if opts.BoardName == "" {
		opts.BoardName = v1.DefaultBoardName
	}
	if opts.SeedUsers == nil {
		opts.SeedUsers = DefaultSeedUsers()
	}
	return &Store{
		remote:    remote,
		logger:    log.WithFields(zap.String("component", "board-store")),
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		listeners: make(map[int]func(*v1.Board)),
	}
}

// Board returns a copy of the mirror, or nil before a successful Load.
func (s *Store) Board() *v1.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

// Loading reports whether a Load or Refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the failure of the last operation, or nil.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// OnChange registers fn to receive a copy of the mirror after every change.
// The returned function removes it.
func (s *Store) OnChange(fn func(*v1.Board)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// notify must be called without s.mu held.
func (s *Store) notify() {
	s.mu.Lock()
	board := s.board.Clone()
	fns := make([]func(*v1.Board), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(board.Clone())
	}
}

// Load fetches the board with id into the mirror. An empty id creates a
// new board named and seeded from Options. On failure the mirror is left
// as it was and Err reports the failure.
func (s *Store) Load(ctx context.Context, id string) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	var (
		board *v1.Board
		err   error
	)
	if id == "" {
		board, err = s.remote.CreateBoard(ctx, &v1.CreateBoardRequest{
			Name:  s.opts.BoardName,
			Users: v1.CloneUsers(s.opts.SeedUsers),
		})
	} else {
		board, err = s.remote.FetchBoard(ctx, id)
	}

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("failed to load board", zap.String("board_id", id), zap.Error(err))
		return err
	}
	s.board = board
	s.err = nil
	s.mu.Unlock()

	s.notify()
	return nil
}

// Refresh reloads the current board from the remote. Without a loaded
// board it creates one, the same as Load with an empty id.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	id := ""
	if s.board != nil {
		id = s.board.ID
	}
	s.mu.Unlock()
	return s.Load(ctx, id)
}

// mutate runs one optimistic mutation. apply edits a copy of the mirror
// that then becomes the mirror; persist performs the remote call and
// returns the canonical board.
func (s *Store) mutate(ctx context.Context, op string, apply func(b *v1.Board), persist func(ctx context.Context, boardID string) (*v1.Board, error)) error {
	s.mu.Lock()
	if s.board == nil {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.board.Clone()
	next := s.board.Clone()
	apply(next)
	s.board = next
	s.mu.Unlock()
	s.notify()

	canonical, err := persist(ctx, snapshot.ID)

	s.mu.Lock()
	if err != nil {
		s.board = snapshot
		s.err = err
	} else {
		s.board = canonical
		s.err = nil
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.logger.Warn("mutation failed, rolled back",
			zap.String("op", op),
			zap.String("board_id", snapshot.ID),
			zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AddTask appends a placeholder task to the column, then replaces it with
// the server's task.
func (s *Store) AddTask(ctx context.Context, columnID string, draft v1.TaskDraft) error {
	s.mu.Lock()
	s.tempSeq++
	tempID := fmt.Sprintf("temp-%d", s.tempSeq)
	s.mu.Unlock()

	now := s.now()
	apply := func(b *v1.Board) {
		col := b.Column(columnID)
		if col == nil {
			return
		}
		task := v1.Task{
			ID:          tempID,
			Title:       draft.Title,
			Description: draft.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if draft.AssignedTo != nil {
			a := *draft.AssignedTo
			task.AssignedTo = &a
		}
		col.Tasks = append(col.Tasks, task)
	}
	return s.mutate(ctx, "add task", apply, func(ctx context.Context, boardID string) (*v1.Board, error) {
		res, err := s.remote.AddTask(ctx, &v1.AddTaskRequest{BoardID: boardID, ColumnID: columnID, Task: draft})
		if err != nil {
			return nil, err
		}
		return res.Board, nil
	})
}

// UpdateTask applies updates to the mirrored task, then to the server.
func (s *Store) UpdateTask(ctx context.Context, columnID, taskID string, updates v1.TaskUpdates) error {
	now := s.now()
	apply := func(b *v1.Board) {
		col := b.Column(columnID)
		if col == nil {
			return
		}
		i := col.TaskIndex(taskID)
		if i < 0 {
			return
		}
		t := &col.Tasks[i]
		if updates.Title != nil {
			t.Title = *updates.Title
		}
		if updates.Description != nil {
			t.Description = *updates.Description
		}
		if updates.AssignedTo.Set {
			t.AssignedTo = nil
			if v := updates.AssignedTo.Value; v != nil {
				a := *v
				t.AssignedTo = &a
			}
		}
		t.UpdatedAt = now
	}
	return s.mutate(ctx, "update task", apply, func(ctx context.Context, boardID string) (*v1.Board, error) {
		res, err := s.remote.UpdateTask(ctx, &v1.UpdateTaskRequest{
			BoardID: boardID, ColumnID: columnID, TaskID: taskID, Updates: updates,
		})
		if err != nil {
			return nil, err
		}
		return res.Board, nil
	})
}

// DeleteTask removes the task from the mirror, then from the server.
func (s *Store) DeleteTask(ctx context.Context, columnID, taskID string) error {
	apply := func(b *v1.Board) {
		col := b.Column(columnID)
		if col == nil {
			return
		}
		kept := make([]v1.Task, 0, len(col.Tasks))
		for _, t := range col.Tasks {
			if t.ID != taskID {
				kept = append(kept, t)
			}
		}
		col.Tasks = kept
	}
	return s.mutate(ctx, "delete task", apply, func(ctx context.Context, boardID string) (*v1.Board, error) {
		res, err := s.remote.DeleteTask(ctx, &v1.DeleteTaskRequest{BoardID: boardID, ColumnID: columnID, TaskID: taskID})
		if err != nil {
			return nil, err
		}
		return res.Board, nil
	})
}

// MoveTask splices the task from srcIndex in srcColumn to dstIndex in
// dstColumn, the same way the server will. Dropping a task where it
// started does nothing and makes no remote call.
func (s *Store) MoveTask(ctx context.Context, taskID, srcColumn, dstColumn string, srcIndex, dstIndex int) error {
	if srcColumn == dstColumn && srcIndex == dstIndex {
		return nil
	}
	now := s.now()
	apply := func(b *v1.Board) {
		if _, _, err := reorder.MoveTask(b, srcColumn, dstColumn, srcIndex, dstIndex, now); err != nil {
			s.logger.Debug("optimistic move skipped", zap.String("task_id", taskID), zap.Error(err))
		}
	}
	return s.mutate(ctx, "move task", apply, func(ctx context.Context, boardID string) (*v1.Board, error) {
		res, err := s.remote.MoveTask(ctx, &v1.MoveTaskRequest{
			BoardID:             boardID,
			TaskID:              taskID,
			SourceColumnID:      srcColumn,
			DestinationColumnID: dstColumn,
			SourceIndex:         &srcIndex,
			DestinationIndex:    &dstIndex,
		})
		if err != nil {
			return nil, err
		}
		return res.Board, nil
	})
}

// Watch applies pushed boards to the mirror until ctx is done or updates
// is closed. Pushes for other boards and pushes older than the mirror are
// ignored. A deletion of the mirrored board clears the mirror.
func (s *Store) Watch(ctx context.Context, updates <-chan v1.BoardNotification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-updates:
			if !ok {
				return
			}
			if s.applyPush(n) {
				s.notify()
			}
		}
	}
}

func (s *Store) applyPush(n v1.BoardNotification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.board == nil || s.board.ID != n.BoardID {
		return false
	}
	if n.Deleted {
		s.board = nil
		return true
	}
	if n.Board == nil || n.Board.UpdatedAt.Before(s.board.UpdatedAt) {
		return false
	}
	s.board = n.Board.Clone()
	return true
}
