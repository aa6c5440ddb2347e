package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	apperrors "github.com/kandev/taskboard/internal/common/errors"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
	"github.com/kandev/taskboard/pkg/reorder"
)

func (s *Service) checkAssignee(b *v1.Board, assignee *string) error {
	if assignee == nil {
		return nil
	}
	if !b.HasUser(*assignee) {
		return apperrors.ValidationError("assignedTo", "unknown user "+*assignee)
	}
	return nil
}

// AddTask appends a new task to the end of a column.
func (s *Service) AddTask(ctx context.Context, req *v1.AddTaskRequest) (_ *v1.TaskResult, err error) {
	ctx, span := s.startSpan(ctx, "AddTask",
		attribute.String("board.id", req.BoardID),
		attribute.String("column.id", req.ColumnID))
	defer func() { endSpan(span, err) }()

	if err := validate(req); err != nil {
		return nil, err
	}

	board, err := s.load(ctx, req.BoardID)
	if err != nil {
		return nil, err
	}
	col := board.Column(req.ColumnID)
	if col == nil {
		return nil, apperrors.ColumnNotFound(req.ColumnID)
	}
	if err := s.checkAssignee(board, req.Task.AssignedTo); err != nil {
		return nil, err
	}

	now := s.now()
	task := v1.Task{
		ID:          s.newID(),
		Title:       strings.TrimSpace(req.Task.Title),
		Description: req.Task.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Task.AssignedTo != nil {
		a := *req.Task.AssignedTo
		task.AssignedTo = &a
	}
	col.Tasks = append(col.Tasks, task)

	saved, err := s.save(ctx, board, now, "task.add")
	if err != nil {
		return nil, err
	}
	return &v1.TaskResult{Board: saved, Task: taskIn(saved, req.ColumnID, task.ID)}, nil
}

// UpdateTask applies the fields present in req.Updates and refreshes the
// task's UpdatedAt. Absent fields keep their stored values.
func (s *Service) UpdateTask(ctx context.Context, req *v1.UpdateTaskRequest) (_ *v1.TaskResult, err error) {
	ctx, span := s.startSpan(ctx, "UpdateTask",
		attribute.String("board.id", req.BoardID),
		attribute.String("task.id", req.TaskID))
	defer func() { endSpan(span, err) }()

	if err := validate(req); err != nil {
		return nil, err
	}

	board, col, idx, err := s.locate(ctx, req.BoardID, req.ColumnID, req.TaskID)
	if err != nil {
		return nil, err
	}
	if req.Updates.AssignedTo.Set {
		if err := s.checkAssignee(board, req.Updates.AssignedTo.Value); err != nil {
			return nil, err
		}
	}

	now := s.now()
	task := &col.Tasks[idx]
	if req.Updates.Title != nil {
		task.Title = strings.TrimSpace(*req.Updates.Title)
	}
	if req.Updates.Description != nil {
		task.Description = *req.Updates.Description
	}
	if req.Updates.AssignedTo.Set {
		if v := req.Updates.AssignedTo.Value; v != nil {
			a := *v
			task.AssignedTo = &a
		} else {
			task.AssignedTo = nil
		}
	}
	task.UpdatedAt = now

	saved, err := s.save(ctx, board, now, "task.update")
	if err != nil {
		return nil, err
	}
	return &v1.TaskResult{Board: saved, Task: taskIn(saved, req.ColumnID, req.TaskID)}, nil
}

// DeleteTask removes exactly one task from its column.
func (s *Service) DeleteTask(ctx context.Context, req *v1.DeleteTaskRequest) (_ *v1.DeleteTaskResult, err error) {
	ctx, span := s.startSpan(ctx, "DeleteTask",
		attribute.String("board.id", req.BoardID),
		attribute.String("task.id", req.TaskID))
	defer func() { endSpan(span, err) }()

	if err := validate(req); err != nil {
		return nil, err
	}

	board, col, idx, err := s.locate(ctx, req.BoardID, req.ColumnID, req.TaskID)
	if err != nil {
		return nil, err
	}
	col.Tasks, _, err = reorder.Remove(col.Tasks, idx)
	if err != nil {
		return nil, apperrors.InternalError("failed to remove task", err)
	}

	saved, err := s.save(ctx, board, s.now(), "task.delete")
	if err != nil {
		return nil, err
	}
	return &v1.DeleteTaskResult{Message: MsgTaskDeleted, Board: saved}, nil
}

// RepositionTask moves a task within or across columns. The splice uses the
// caller's indices: the task at SourceIndex is removed and inserted at
// DestinationIndex, clamped to the destination length. The task id must be
// present in the source column and SourceIndex must address an element of
// it; a mismatch between the two is logged but the index wins.
func (s *Service) RepositionTask(ctx context.Context, req *v1.MoveTaskRequest) (_ *v1.MoveTaskResult, err error) {
	ctx, span := s.startSpan(ctx, "RepositionTask",
		attribute.String("board.id", req.BoardID),
		attribute.String("task.id", req.TaskID))
	defer func() { endSpan(span, err) }()

	if err := validate(req); err != nil {
		return nil, err
	}

	board, err := s.load(ctx, req.BoardID)
	if err != nil {
		return nil, err
	}
	src := board.Column(req.SourceColumnID)
	if src == nil {
		return nil, apperrors.ColumnNotFound(req.SourceColumnID)
	}
	if board.Column(req.DestinationColumnID) == nil {
		return nil, apperrors.ColumnNotFound(req.DestinationColumnID)
	}
	found := src.TaskIndex(req.TaskID)
	srcIdx, dstIdx := *req.SourceIndex, *req.DestinationIndex
	if found < 0 || srcIdx >= len(src.Tasks) {
		return nil, apperrors.TaskNotFound(req.TaskID)
	}
	if found != srcIdx {
		s.logger.Warn("source index does not match task position",
			zap.String("board_id", req.BoardID),
			zap.String("task_id", req.TaskID),
			zap.Int("source_index", srcIdx),
			zap.Int("task_index", found))
	}

	if req.IsNoop() {
		task := src.Tasks[srcIdx].Clone()
		return &v1.MoveTaskResult{Message: MsgTaskMoved, Board: board, Task: &task}, nil
	}

	now := s.now()
	moved, _, err := reorder.MoveTask(board, req.SourceColumnID, req.DestinationColumnID, srcIdx, dstIdx, now)
	if err != nil {
		switch {
		case errors.Is(err, reorder.ErrIndexOutOfRange):
			return nil, apperrors.TaskNotFound(req.TaskID)
		case errors.Is(err, reorder.ErrColumnNotFound):
			return nil, apperrors.ColumnNotFound(req.DestinationColumnID)
		}
		return nil, apperrors.InternalError("failed to move task", err)
	}

	saved, err := s.save(ctx, board, now, "task.move")
	if err != nil {
		return nil, err
	}
	return &v1.MoveTaskResult{
		Message: MsgTaskMoved,
		Board:   saved,
		Task:    taskIn(saved, req.DestinationColumnID, moved.ID),
	}, nil
}

// TaskStatus reports which column currently holds a task.
func (s *Service) TaskStatus(ctx context.Context, boardID, taskID string) (_ *v1.TaskStatusResult, err error) {
	ctx, span := s.startSpan(ctx, "TaskStatus",
		attribute.String("board.id", boardID),
		attribute.String("task.id", taskID))
	defer func() { endSpan(span, err) }()

	if err := requireField("boardId", boardID); err != nil {
		return nil, err
	}
	if err := requireField("taskId", taskID); err != nil {
		return nil, err
	}
	board, err := s.load(ctx, boardID)
	if err != nil {
		return nil, err
	}
	task, colID, ok := board.FindTask(taskID)
	if !ok {
		return nil, apperrors.TaskNotFound(taskID)
	}
	out := task.Clone()
	return &v1.TaskStatusResult{Task: &out, ColumnID: colID}, nil
}

// locate loads a board and finds a task inside a named column.
func (s *Service) locate(ctx context.Context, boardID, columnID, taskID string) (*v1.Board, *v1.Column, int, error) {
	board, err := s.load(ctx, boardID)
	if err != nil {
		return nil, nil, 0, err
	}
	col := board.Column(columnID)
	if col == nil {
		return nil, nil, 0, apperrors.ColumnNotFound(columnID)
	}
	idx := col.TaskIndex(taskID)
	if idx < 0 {
		return nil, nil, 0, apperrors.TaskNotFound(taskID)
	}
	return board, col, idx, nil
}

// taskIn returns a copy of a task from the saved board.
func taskIn(b *v1.Board, columnID, taskID string) *v1.Task {
	col := b.Column(columnID)
	if col == nil {
		return nil
	}
	if i := col.TaskIndex(taskID); i >= 0 {
		t := col.Tasks[i].Clone()
		return &t
	}
	return nil
}
