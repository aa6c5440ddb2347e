package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
	"github.com/kandev/taskboard/pkg/client"
	"github.com/kandev/taskboard/pkg/store"
)

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"boards", "list boards", (*app).boards},
	{"show", "show a board, creating a default board when -board is empty", (*app).show},
	{"add", "add a task to a column", (*app).add},
	{"update", "update fields of a task", (*app).update},
	{"delete", "delete a task", (*app).deleteTask},
	{"move", "move a task to a column position", (*app).move},
	{"status", "show the column holding a task", (*app).status},
	{"rm-board", "delete a board", (*app).removeBoard},
	{"watch", "print the board every time it changes", (*app).watch},
}

type app struct {
	client *client.Client
	out    *printer
	logger *logger.Logger
}

func newApp(serverURL string, out *printer, log *logger.Logger) *app {
	return &app{
		client: client.New(serverURL, log),
		out:    out,
		logger: log,
	}
}

// open loads boardID into a fresh store.
func (a *app) open(ctx context.Context, boardID string) (*store.Store, error) {
	s := store.New(a.client, a.logger, store.Options{})
	if err := s.Load(ctx, boardID); err != nil {
		return nil, err
	}
	return s, nil
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("boardctl "+name, flag.ContinueOnError)
}

func required(fs *flag.FlagSet, names ...string) error {
	for _, n := range names {
		if fs.Lookup(n).Value.String() == "" {
			return fmt.Errorf("%s: -%s is required", fs.Name(), n)
		}
	}
	return nil
}

func (a *app) boards(ctx context.Context, args []string) error {
	fs := newFlagSet("boards")
	if err := fs.Parse(args); err != nil {
		return err
	}
	boards, err := a.client.ListBoards(ctx)
	if err != nil {
		return err
	}
	return a.out.print(v1.ListBoardsResponse{Boards: boards, Total: len(boards)})
}

func (a *app) show(ctx context.Context, args []string) error {
	fs := newFlagSet("show")
	boardID := fs.String("board", "", "board id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.open(ctx, *boardID)
	if err != nil {
		return err
	}
	return a.out.print(s.Board())
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	boardID := fs.String("board", "", "board id")
	columnID := fs.String("column", "", "column id")
	title := fs.String("title", "", "task title")
	description := fs.String("description", "", "task description")
	assign := fs.String("assign", "", "user id to assign")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "board", "column", "title"); err != nil {
		return err
	}

	draft := v1.TaskDraft{Title: *title, Description: *description}
	if *assign != "" {
		draft.AssignedTo = assign
	}

	s, err := a.open(ctx, *boardID)
	if err != nil {
		return err
	}
	if err := s.AddTask(ctx, *columnID, draft); err != nil {
		return err
	}
	return a.out.print(s.Board())
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := newFlagSet("update")
	boardID := fs.String("board", "", "board id")
	columnID := fs.String("column", "", "column id")
	taskID := fs.String("task", "", "task id")
	title := fs.String("title", "", "new title")
	description := fs.String("description", "", "new description")
	assign := fs.String("assign", "", "user id to assign")
	unassign := fs.Bool("unassign", false, "clear the assignee")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "board", "column", "task"); err != nil {
		return err
	}

	// Only flags given on the command line become updates.
	var updates v1.TaskUpdates
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			updates.Title = title
		case "description":
			updates.Description = description
		case "assign":
			updates.AssignedTo = v1.Some(*assign)
		}
	})
	if *unassign {
		if updates.AssignedTo.Set {
			return errors.New("update: -assign and -unassign are mutually exclusive")
		}
		updates.AssignedTo = v1.Null()
	}
	if updates.IsEmpty() {
		return errors.New("update: nothing to change")
	}

	s, err := a.open(ctx, *boardID)
	if err != nil {
		return err
	}
	if err := s.UpdateTask(ctx, *columnID, *taskID, updates); err != nil {
		return err
	}
	return a.out.print(s.Board())
}

func (a *app) deleteTask(ctx context.Context, args []string) error {
	fs := newFlagSet("delete")
	boardID := fs.String("board", "", "board id")
	columnID := fs.String("column", "", "column id")
	taskID := fs.String("task", "", "task id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "board", "column", "task"); err != nil {
		return err
	}

	s, err := a.open(ctx, *boardID)
	if err != nil {
		return err
	}
	if err := s.DeleteTask(ctx, *columnID, *taskID); err != nil {
		return err
	}
	return a.out.print(s.Board())
}

func (a *app) move(ctx context.Context, args []string) error {
	fs := newFlagSet("move")
	boardID := fs.String("board", "", "board id")
	taskID := fs.String("task", "", "task id")
	from := fs.String("from", "", "source column id")
	to := fs.String("to", "", "destination column id")
	fromIndex := fs.Int("from-index", -1, "position of the task in the source column; looked up when omitted")
	toIndex := fs.Int("to-index", 0, "position in the destination column")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "board", "task", "from", "to"); err != nil {
		return err
	}
	if *toIndex < 0 {
		return errors.New("move: -to-index must not be negative")
	}

	s, err := a.open(ctx, *boardID)
	if err != nil {
		return err
	}
	src := *fromIndex
	if src < 0 {
		if src = indexOf(s.Board(), *from, *taskID); src < 0 {
			return fmt.Errorf("move: task %s is not in column %s", *taskID, *from)
		}
	}
	if err := s.MoveTask(ctx, *taskID, *from, *to, src, *toIndex); err != nil {
		return err
	}
	return a.out.print(s.Board())
}

func (a *app) status(ctx context.Context, args []string) error {
	fs := newFlagSet("status")
	boardID := fs.String("board", "", "board id")
	taskID := fs.String("task", "", "task id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "board", "task"); err != nil {
		return err
	}
	res, err := a.client.TaskStatus(ctx, *boardID, *taskID)
	if err != nil {
		return err
	}
	return a.out.print(res)
}

func (a *app) removeBoard(ctx context.Context, args []string) error {
	fs := newFlagSet("rm-board")
	boardID := fs.String("board", "", "board id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "board"); err != nil {
		return err
	}
	if err := a.client.DeleteBoard(ctx, *boardID); err != nil {
		return err
	}
	return a.out.print(v1.MessageResponse{Message: "Board deleted successfully"})
}

// watch prints the board on every pushed change until the board is
// deleted, the connection drops or ctx is cancelled.
func (a *app) watch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch")
	boardID := fs.String("board", "", "board id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "board"); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := a.open(ctx, *boardID)
	if err != nil {
		return err
	}
	updates, err := a.client.Watch(ctx, *boardID)
	if err != nil {
		return err
	}
	if err := a.out.print(s.Board()); err != nil {
		return err
	}

	var printErr error
	unsubscribe := s.OnChange(func(b *v1.Board) {
		if b == nil {
			a.logger.Info("board deleted", zap.String("board_id", *boardID))
			cancel()
			return
		}
		if err := a.out.print(b); err != nil {
			printErr = err
			cancel()
		}
	})
	defer unsubscribe()

	s.Watch(ctx, updates)
	return printErr
}

func indexOf(b *v1.Board, columnID, taskID string) int {
	if b == nil {
		return -1
	}
	for _, col := range b.Columns {
		if col.ID != columnID {
			continue
		}
		for i, t := range col.Tasks {
			if t.ID == taskID {
				return i
			}
		}
	}
	return -1
}
