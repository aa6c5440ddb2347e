package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/board/repository/memory"
	apperrors "github.com/kandev/taskboard/internal/common/errors"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *Service
	repo *memory.Repository
	bus  *bus.MemoryEventBus
	now  time.Time
	seq  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{repo: memory.New(), bus: bus.NewMemoryEventBus(logger.NewNop()), now: t0}
	t.Cleanup(f.bus.Close)
	f.svc = NewService(f.repo, f.bus, logger.NewNop(), Options{
		SeedUsers: []v1.User{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}},
	})
	f.svc.now = func() time.Time { return f.now }
	f.svc.newID = func() string {
		f.seq++
		return fmt.Sprintf("task-%d", f.seq)
	}
	return f
}

func (f *fixture) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

// board creates a default board with tasks pre-filled per column.
func (f *fixture) board(t *testing.T, layout map[string][]string) *v1.Board {
	t.Helper()
	ctx := context.Background()
	b, err := f.svc.FetchBoard(ctx, "")
	require.NoError(t, err)
	for _, colID := range []string{v1.ColumnTodo, v1.ColumnInProgress, v1.ColumnDone} {
		for _, title := range layout[colID] {
			res, err := f.svc.AddTask(ctx, &v1.AddTaskRequest{BoardID: b.ID, ColumnID: colID, Task: v1.TaskDraft{Title: title}})
			require.NoError(t, err)
			b = res.Board
		}
	}
	return b
}

func titles(b *v1.Board, colID string) []string {
	out := []string{}
	for _, t := range b.Column(colID).Tasks {
		out = append(out, t.Title)
	}
	return out
}

func intp(i int) *int { return &i }

func TestFetchBoard_EmptyIDCreatesDefault(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.FetchBoard(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, v1.DefaultBoardName, b.Name)
	require.Len(t, b.Columns, 3)
	assert.Equal(t, []string{"todo", "inprogress", "done"}, []string{b.Columns[0].ID, b.Columns[1].ID, b.Columns[2].ID})
	assert.Equal(t, "In Progress", b.Columns[1].Title)
	assert.Len(t, b.Users, 2)

	again, err := f.svc.FetchBoard(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestFetchBoard_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.FetchBoard(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBoardNotFound, apperrors.CodeOf(err))
}

func TestCreateBoard_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBoard(context.Background(), &v1.CreateBoardRequest{
		Columns: []v1.Column{{ID: "a", Title: "A"}, {ID: "a", Title: "Again"}},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.CreateBoard(context.Background(), &v1.CreateBoardRequest{
		Users: []v1.User{{ID: "u1", Name: " "}},
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateBoard_CustomColumns(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.CreateBoard(context.Background(), &v1.CreateBoardRequest{
		Name:    "Sprint",
		Columns: []v1.Column{{ID: "backlog", Title: "Backlog"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sprint", b.Name)
	require.Len(t, b.Columns, 1)
	assert.NotNil(t, b.Columns[0].Tasks)
	assert.Empty(t, b.Users)
}

func TestListBoards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBoard(ctx, &v1.CreateBoardRequest{Name: "one"})
	require.NoError(t, err)
	_, err = f.svc.CreateBoard(ctx, &v1.CreateBoardRequest{Name: "two"})
	require.NoError(t, err)

	boards, err := f.svc.ListBoards(ctx)
	require.NoError(t, err)
	assert.Len(t, boards, 2)
}

func TestReplaceBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A"}})

	now := f.tick()
	cols := []v1.Column{{ID: "only", Title: "Only", Order: 0}}
	out, err := f.svc.ReplaceBoard(ctx, b.ID, &v1.ReplaceBoardRequest{Columns: cols})
	require.NoError(t, err)
	require.Len(t, out.Columns, 1)
	assert.Equal(t, []v1.Task{}, out.Columns[0].Tasks)
	assert.Equal(t, []v1.User{}, out.Users)
	assert.Equal(t, now, out.UpdatedAt)

	_, err = f.svc.ReplaceBoard(ctx, "missing", &v1.ReplaceBoardRequest{Columns: cols})
	assert.Equal(t, apperrors.ErrCodeBoardNotFound, apperrors.CodeOf(err))

	_, err = f.svc.ReplaceBoard(ctx, b.ID, &v1.ReplaceBoardRequest{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestDeleteBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, nil)

	require.NoError(t, f.svc.DeleteBoard(ctx, b.ID))
	_, err := f.svc.FetchBoard(ctx, b.ID)
	assert.True(t, apperrors.IsNotFound(err))

	err = f.svc.DeleteBoard(ctx, b.ID)
	assert.Equal(t, apperrors.ErrCodeBoardNotFound, apperrors.CodeOf(err))
}

func TestAddTask_AppendsWithServerIDAndTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A"}})

	now := f.tick()
	res, err := f.svc.AddTask(ctx, &v1.AddTaskRequest{
		BoardID:  b.ID,
		ColumnID: v1.ColumnTodo,
		Task:     v1.TaskDraft{Title: "  Write docs  "},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "Write docs"}, titles(res.Board, v1.ColumnTodo))
	require.NotNil(t, res.Task)
	assert.Equal(t, "task-2", res.Task.ID)
	assert.Equal(t, "", res.Task.Description)
	assert.Nil(t, res.Task.AssignedTo)
	assert.Equal(t, now, res.Task.CreatedAt)
	assert.Equal(t, now, res.Task.UpdatedAt)
	assert.Equal(t, now, res.Board.UpdatedAt)

	stored, err := f.repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Board, stored)
}

func TestAddTask_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, nil)

	tests := []struct {
		name string
		req  *v1.AddTaskRequest
		code string
	}{
		{"blank title", &v1.AddTaskRequest{BoardID: b.ID, ColumnID: v1.ColumnTodo, Task: v1.TaskDraft{Title: "  "}}, apperrors.ErrCodeValidation},
		{"missing board id", &v1.AddTaskRequest{ColumnID: v1.ColumnTodo, Task: v1.TaskDraft{Title: "x"}}, apperrors.ErrCodeValidation},
		{"unknown board", &v1.AddTaskRequest{BoardID: "nope", ColumnID: v1.ColumnTodo, Task: v1.TaskDraft{Title: "x"}}, apperrors.ErrCodeBoardNotFound},
		{"unknown column", &v1.AddTaskRequest{BoardID: b.ID, ColumnID: "nope", Task: v1.TaskDraft{Title: "x"}}, apperrors.ErrCodeColumnNotFound},
		{"unknown assignee", &v1.AddTaskRequest{BoardID: b.ID, ColumnID: v1.ColumnTodo, Task: v1.TaskDraft{Title: "x", AssignedTo: ptr("u9")}}, apperrors.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddTask(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
		})
	}
}

func ptr(s string) *string { return &s }

func TestUpdateTask_OnlyPresentFieldsChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, nil)

	added, err := f.svc.AddTask(ctx, &v1.AddTaskRequest{
		BoardID: b.ID, ColumnID: v1.ColumnTodo,
		Task: v1.TaskDraft{Title: "A", Description: "keep me", AssignedTo: ptr("u1")},
	})
	require.NoError(t, err)
	before := *added.Task

	now := f.tick()
	res, err := f.svc.UpdateTask(ctx, &v1.UpdateTaskRequest{
		BoardID: b.ID, ColumnID: v1.ColumnTodo, TaskID: before.ID,
		Updates: v1.TaskUpdates{Title: ptr("B")},
	})
	require.NoError(t, err)

	assert.Equal(t, "B", res.Task.Title)
	assert.Equal(t, "keep me", res.Task.Description)
	require.NotNil(t, res.Task.AssignedTo)
	assert.Equal(t, "u1", *res.Task.AssignedTo)
	assert.Equal(t, before.CreatedAt, res.Task.CreatedAt)
	assert.Equal(t, now, res.Task.UpdatedAt)
}

func TestUpdateTask_Unassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, nil)

	added, err := f.svc.AddTask(ctx, &v1.AddTaskRequest{
		BoardID: b.ID, ColumnID: v1.ColumnTodo,
		Task: v1.TaskDraft{Title: "A", AssignedTo: ptr("u2")},
	})
	require.NoError(t, err)

	res, err := f.svc.UpdateTask(ctx, &v1.UpdateTaskRequest{
		BoardID: b.ID, ColumnID: v1.ColumnTodo, TaskID: added.Task.ID,
		Updates: v1.TaskUpdates{AssignedTo: v1.Null()},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Task.AssignedTo)
	assert.Equal(t, "A", res.Task.Title)
}

func TestUpdateTask_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A"}})
	id := b.Column(v1.ColumnTodo).Tasks[0].ID

	_, err := f.svc.UpdateTask(ctx, &v1.UpdateTaskRequest{BoardID: b.ID, ColumnID: v1.ColumnDone, TaskID: id, Updates: v1.TaskUpdates{Title: ptr("x")}})
	assert.Equal(t, apperrors.ErrCodeTaskNotFound, apperrors.CodeOf(err))

	_, err = f.svc.UpdateTask(ctx, &v1.UpdateTaskRequest{BoardID: b.ID, ColumnID: "zzz", TaskID: id})
	assert.Equal(t, apperrors.ErrCodeColumnNotFound, apperrors.CodeOf(err))
}

func TestDeleteTask_RemovesExactlyOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A", "B", "C"}, v1.ColumnDone: {"D"}})
	target := b.Column(v1.ColumnTodo).Tasks[1]

	res, err := f.svc.DeleteTask(ctx, &v1.DeleteTaskRequest{BoardID: b.ID, ColumnID: v1.ColumnTodo, TaskID: target.ID})
	require.NoError(t, err)

	assert.Equal(t, MsgTaskDeleted, res.Message)
	assert.Equal(t, []string{"A", "C"}, titles(res.Board, v1.ColumnTodo))
	assert.Equal(t, []string{"D"}, titles(res.Board, v1.ColumnDone))
	assert.Equal(t, b.TaskCount()-1, res.Board.TaskCount())

	_, err = f.svc.DeleteTask(ctx, &v1.DeleteTaskRequest{BoardID: b.ID, ColumnID: v1.ColumnTodo, TaskID: target.ID})
	assert.Equal(t, apperrors.ErrCodeTaskNotFound, apperrors.CodeOf(err))

	after, err := f.svc.FetchBoard(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, titles(after, v1.ColumnTodo))
	assert.Equal(t, []string{"D"}, titles(after, v1.ColumnDone))
	assert.Equal(t, res.Board.UpdatedAt, after.UpdatedAt, "a failed delete does not save")
}

func TestRepositionTask_WithinColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A", "B", "C"}})
	a := b.Column(v1.ColumnTodo).Tasks[0]

	now := f.tick()
	res, err := f.svc.RepositionTask(ctx, &v1.MoveTaskRequest{
		BoardID: b.ID, TaskID: a.ID,
		SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnTodo,
		SourceIndex: intp(0), DestinationIndex: intp(2),
	})
	require.NoError(t, err)

	assert.Equal(t, MsgTaskMoved, res.Message)
	assert.Equal(t, []string{"B", "C", "A"}, titles(res.Board, v1.ColumnTodo))
	assert.Equal(t, a.ID, res.Task.ID)
	assert.Equal(t, now, res.Task.UpdatedAt)
	assert.Equal(t, now, res.Board.UpdatedAt)
}

func TestRepositionTask_AcrossColumnsPreservesCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A", "B"}, v1.ColumnDone: {"X", "Y"}})
	moving := b.Column(v1.ColumnTodo).Tasks[1]

	res, err := f.svc.RepositionTask(ctx, &v1.MoveTaskRequest{
		BoardID: b.ID, TaskID: moving.ID,
		SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnDone,
		SourceIndex: intp(1), DestinationIndex: intp(1),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, titles(res.Board, v1.ColumnTodo))
	assert.Equal(t, []string{"X", "B", "Y"}, titles(res.Board, v1.ColumnDone))
	assert.Equal(t, b.TaskCount(), res.Board.TaskCount())
}

func TestRepositionTask_ClampsDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A"}, v1.ColumnDone: {"X"}})

	res, err := f.svc.RepositionTask(ctx, &v1.MoveTaskRequest{
		BoardID: b.ID, TaskID: b.Column(v1.ColumnTodo).Tasks[0].ID,
		SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnDone,
		SourceIndex: intp(0), DestinationIndex: intp(99),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "A"}, titles(res.Board, v1.ColumnDone))
}

func TestRepositionTask_NoopDoesNotSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A", "B"}})

	f.tick()
	res, err := f.svc.RepositionTask(ctx, &v1.MoveTaskRequest{
		BoardID: b.ID, TaskID: b.Column(v1.ColumnTodo).Tasks[1].ID,
		SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnTodo,
		SourceIndex: intp(1), DestinationIndex: intp(1),
	})
	require.NoError(t, err)
	assert.Equal(t, b, res.Board)

	stored, err := f.repo.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.UpdatedAt, stored.UpdatedAt)
}

func TestRepositionTask_SplicesAtSourceIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A", "B", "C"}})
	a := b.Column(v1.ColumnTodo).Tasks[0]

	// The caller's index is stale: it names A but points at B.
	res, err := f.svc.RepositionTask(ctx, &v1.MoveTaskRequest{
		BoardID: b.ID, TaskID: a.ID,
		SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnDone,
		SourceIndex: intp(1), DestinationIndex: intp(0),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, titles(res.Board, v1.ColumnTodo))
	assert.Equal(t, []string{"B"}, titles(res.Board, v1.ColumnDone))
}

func TestRepositionTask_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnTodo: {"A"}, v1.ColumnDone: {"X"}})
	a := b.Column(v1.ColumnTodo).Tasks[0]

	tests := []struct {
		name string
		req  v1.MoveTaskRequest
		code string
	}{
		{"missing index", v1.MoveTaskRequest{BoardID: b.ID, TaskID: a.ID, SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnDone, SourceIndex: intp(0)}, apperrors.ErrCodeValidation},
		{"negative index", v1.MoveTaskRequest{BoardID: b.ID, TaskID: a.ID, SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnDone, SourceIndex: intp(-1), DestinationIndex: intp(0)}, apperrors.ErrCodeValidation},
		{"unknown board", v1.MoveTaskRequest{BoardID: "nope", TaskID: a.ID, SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnDone, SourceIndex: intp(0), DestinationIndex: intp(0)}, apperrors.ErrCodeBoardNotFound},
		{"unknown source column", v1.MoveTaskRequest{BoardID: b.ID, TaskID: a.ID, SourceColumnID: "nope", DestinationColumnID: v1.ColumnDone, SourceIndex: intp(0), DestinationIndex: intp(0)}, apperrors.ErrCodeColumnNotFound},
		{"unknown destination column", v1.MoveTaskRequest{BoardID: b.ID, TaskID: a.ID, SourceColumnID: v1.ColumnTodo, DestinationColumnID: "nope", SourceIndex: intp(0), DestinationIndex: intp(0)}, apperrors.ErrCodeColumnNotFound},
		{"task in other column", v1.MoveTaskRequest{BoardID: b.ID, TaskID: a.ID, SourceColumnID: v1.ColumnDone, DestinationColumnID: v1.ColumnTodo, SourceIndex: intp(0), DestinationIndex: intp(0)}, apperrors.ErrCodeTaskNotFound},
		{"source index out of range", v1.MoveTaskRequest{BoardID: b.ID, TaskID: a.ID, SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnDone, SourceIndex: intp(5), DestinationIndex: intp(0)}, apperrors.ErrCodeTaskNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.svc.RepositionTask(ctx, &req)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
		})
	}
}

func TestTaskStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, map[string][]string{v1.ColumnInProgress: {"A"}})
	a := b.Column(v1.ColumnInProgress).Tasks[0]

	res, err := f.svc.TaskStatus(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ColumnInProgress, res.ColumnID)
	assert.Equal(t, a.ID, res.Task.ID)

	_, err = f.svc.TaskStatus(ctx, b.ID, "nope")
	assert.Equal(t, apperrors.ErrCodeTaskNotFound, apperrors.CodeOf(err))
	_, err = f.svc.TaskStatus(ctx, "", a.ID)
	assert.True(t, apperrors.IsValidation(err))
}

func TestMutationsPublishCanonicalBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, nil)

	got := make(chan events.BoardChanged, 4)
	sub, err := f.bus.Subscribe(events.Subjects{}.AllBoards(), func(_ context.Context, e *bus.Event) error {
		var payload events.BoardChanged
		if err := e.Decode(&payload); err != nil {
			return err
		}
		got <- payload
		return nil
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	res, err := f.svc.AddTask(ctx, &v1.AddTaskRequest{BoardID: b.ID, ColumnID: v1.ColumnTodo, Task: v1.TaskDraft{Title: "A"}})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteBoard(ctx, b.ID))

	select {
	case e := <-got:
		assert.Equal(t, "task.add", e.Operation)
		assert.Equal(t, res.Board, e.Board)
	case <-time.After(2 * time.Second):
		t.Fatal("no update event")
	}
	select {
	case e := <-got:
		assert.Equal(t, b.ID, e.BoardID)
		assert.Nil(t, e.Board)
	case <-time.After(2 * time.Second):
		t.Fatal("no delete event")
	}
}

type failingRepo struct {
	repository.Repository
	err error
}

func (r failingRepo) Save(context.Context, *v1.Board) (*v1.Board, error) {
	return nil, r.err
}

func TestStorageFailurePassesMessageThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, nil)

	f.svc.repo = failingRepo{Repository: f.repo, err: errors.New("disk full")}
	_, err := f.svc.AddTask(ctx, &v1.AddTaskRequest{BoardID: b.ID, ColumnID: v1.ColumnTodo, Task: v1.TaskDraft{Title: "A"}})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStorageFailure, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "disk full")
}
