package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kandev/taskboard/internal/board/handlers"
	"github.com/kandev/taskboard/internal/board/repository/memory"
	"github.com/kandev/taskboard/internal/board/service"
	apperrors "github.com/kandev/taskboard/internal/common/errors"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	gateway "github.com/kandev/taskboard/internal/gateway/websocket"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, _ := newTestClientWithGateway(t)
	return c
}

// newTestClientWithGateway also returns a func stopping the websocket
// gateway, which closes every connected watcher.
func newTestClientWithGateway(t *testing.T) (*Client, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	eventBus := bus.NewMemoryEventBus(log)
	svc := service.NewService(memory.New(), eventBus, log, service.Options{})

	gw := gateway.NewGateway(log)
	gw.Start(ctx, eventBus, events.Subjects{})

	router := gin.New()
	handlers.RegisterRoutes(router, gw.Dispatcher, svc, log)
	gw.SetupRoutes(router)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		cancel()
		eventBus.Close()
	})
	return New(server.URL, log), cancel
}

func intp(i int) *int { return &i }

func TestClient_RoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	board, err := c.CreateBoard(ctx, &v1.CreateBoardRequest{Users: []v1.User{{ID: "u1", Name: "Alice"}}})
	require.NoError(t, err)

	added, err := c.AddTask(ctx, &v1.AddTaskRequest{BoardID: board.ID, ColumnID: v1.ColumnTodo, Task: v1.TaskDraft{Title: "A"}})
	require.NoError(t, err)
	assert.Equal(t, "A", added.Task.Title)

	updated, err := c.UpdateTask(ctx, &v1.UpdateTaskRequest{
		BoardID: board.ID, ColumnID: v1.ColumnTodo, TaskID: added.Task.ID,
		Updates: v1.TaskUpdates{AssignedTo: v1.Some("u1")},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Task.AssignedTo)

	moved, err := c.MoveTask(ctx, &v1.MoveTaskRequest{
		BoardID: board.ID, TaskID: added.Task.ID,
		SourceColumnID: v1.ColumnTodo, DestinationColumnID: v1.ColumnDone,
		SourceIndex: intp(0), DestinationIndex: intp(0),
	})
	require.NoError(t, err)
	assert.Len(t, moved.Board.Column(v1.ColumnDone).Tasks, 1)

	status, err := c.TaskStatus(ctx, board.ID, added.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ColumnDone, status.ColumnID)

	deleted, err := c.DeleteTask(ctx, &v1.DeleteTaskRequest{BoardID: board.ID, ColumnID: v1.ColumnDone, TaskID: added.Task.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, deleted.Board.TaskCount())

	boards, err := c.ListBoards(ctx)
	require.NoError(t, err)
	assert.Len(t, boards, 1)

	require.NoError(t, c.DeleteBoard(ctx, board.ID))
}

func TestClient_ErrorsKeepTheirKind(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.FetchBoard(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBoardNotFound, apperrors.CodeOf(err))

	board, err := c.CreateBoard(ctx, &v1.CreateBoardRequest{})
	require.NoError(t, err)

	_, err = c.AddTask(ctx, &v1.AddTaskRequest{BoardID: board.ID, ColumnID: "nope", Task: v1.TaskDraft{Title: "x"}})
	assert.Equal(t, apperrors.ErrCodeColumnNotFound, apperrors.CodeOf(err))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "nope", appErr.Details["columnId"])

	_, err = c.AddTask(ctx, &v1.AddTaskRequest{BoardID: board.ID, ColumnID: v1.ColumnTodo, Task: v1.TaskDraft{Title: ""}})
	assert.True(t, apperrors.IsValidation(err))
}

func TestClient_WatchReceivesCanonicalBoards(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board, err := c.CreateBoard(ctx, &v1.CreateBoardRequest{})
	require.NoError(t, err)

	updates, err := c.Watch(ctx, board.ID)
	require.NoError(t, err)

	res, err := c.AddTask(ctx, &v1.AddTaskRequest{BoardID: board.ID, ColumnID: v1.ColumnTodo, Task: v1.TaskDraft{Title: "pushed"}})
	require.NoError(t, err)

	select {
	case n := <-updates:
		require.NotNil(t, n.Board)
		assert.False(t, n.Deleted)
		assert.Equal(t, res.Board.UpdatedAt, n.Board.UpdatedAt)
		assert.Equal(t, "pushed", n.Board.Column(v1.ColumnTodo).Tasks[0].Title)
	case <-time.After(3 * time.Second):
		t.Fatal("no push received")
	}

	require.NoError(t, c.DeleteBoard(ctx, board.ID))
	select {
	case n := <-updates:
		assert.True(t, n.Deleted)
		assert.Nil(t, n.Board)
	case <-time.After(3 * time.Second):
		t.Fatal("no delete push received")
	}

	cancel()
	for range updates {
	}
}

func TestClient_WatchStopsWhenServerCloses(t *testing.T) {
	c, stopGateway := newTestClientWithGateway(t)

	board, err := c.CreateBoard(context.Background(), &v1.CreateBoardRequest{})
	require.NoError(t, err)

	before := goleak.IgnoreCurrent()
	// the caller's context is never cancelled
	updates, err := c.Watch(context.Background(), board.ID)
	require.NoError(t, err)

	stopGateway()
	select {
	case _, ok := <-updates:
		for ok {
			_, ok = <-updates
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watch channel not closed after the server went away")
	}

	goleak.VerifyNone(t, before)
}
