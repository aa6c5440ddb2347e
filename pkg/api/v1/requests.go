package v1

import (
	"bytes"
	"encoding/json"
)

// CreateBoardRequest creates a board. Omitted fields take defaults.
type CreateBoardRequest struct {
	Name    string   `json:"name,omitempty"`
	Columns []Column `json:"columns,omitempty" validate:"omitempty,dive"`
	Users   []User   `json:"users,omitempty" validate:"omitempty,dive"`
}

// ReplaceBoardRequest replaces a board's columns and users wholesale.
type ReplaceBoardRequest struct {
	Columns []Column `json:"columns" validate:"required,dive"`
	Users   []User   `json:"users" validate:"dive"`
}

// TaskDraft is the client-supplied part of a new task.
type TaskDraft struct {
	Title       string  `json:"title" validate:"notblank"`
	Description string  `json:"description,omitempty"`
	AssignedTo  *string `json:"assignedTo,omitempty"`
}

// AddTaskRequest appends a task to a column.
type AddTaskRequest struct {
	BoardID  string    `json:"boardId" validate:"required"`
	ColumnID string    `json:"columnId" validate:"required"`
	Task     TaskDraft `json:"task"`
}

// TaskUpdates lists the fields to change on a task. Fields left out of the
// payload are not touched.
type TaskUpdates struct {
	Title       *string        `json:"title,omitempty" validate:"omitempty,notblank"`
	Description *string        `json:"description,omitempty"`
	AssignedTo  OptionalString `json:"assignedTo,omitzero"`
}

// IsEmpty reports whether no field is set.
func (u TaskUpdates) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && !u.AssignedTo.Set
}

// UpdateTaskRequest applies TaskUpdates to one task.
type UpdateTaskRequest struct {
	BoardID  string      `json:"boardId" validate:"required"`
	ColumnID string      `json:"columnId" validate:"required"`
	TaskID   string      `json:"taskId" validate:"required"`
	Updates  TaskUpdates `json:"updates"`
}

// DeleteTaskRequest removes one task from a column.
type DeleteTaskRequest struct {
	BoardID  string `json:"boardId" validate:"required"`
	ColumnID string `json:"columnId" validate:"required"`
	TaskID   string `json:"taskId" validate:"required"`
}

// MoveTaskRequest repositions a task. SourceIndex is the caller's view of the
// task's position and is trusted for the splice.
type MoveTaskRequest struct {
	BoardID             string `json:"boardId" validate:"required"`
	TaskID              string `json:"taskId" validate:"required"`
	SourceColumnID      string `json:"sourceColumnId" validate:"required"`
	DestinationColumnID string `json:"destinationColumnId" validate:"required"`
	SourceIndex         *int   `json:"sourceIndex" validate:"required,min=0"`
	DestinationIndex    *int   `json:"destinationIndex" validate:"required,min=0"`
}

// IsNoop reports whether the move leaves the task where it is.
func (r MoveTaskRequest) IsNoop() bool {
	return r.SourceColumnID == r.DestinationColumnID &&
		r.SourceIndex != nil && r.DestinationIndex != nil &&
		*r.SourceIndex == *r.DestinationIndex
}

// TaskResult is returned by add and update.
type TaskResult struct {
	Board *Board `json:"board"`
	Task  *Task  `json:"task"`
}

// DeleteTaskResult is returned by task deletion.
type DeleteTaskResult struct {
	Message string `json:"message"`
	Board   *Board `json:"board"`
}

// MoveTaskResult is returned by reposition.
type MoveTaskResult struct {
	Message string `json:"message"`
	Board   *Board `json:"board"`
	Task    *Task  `json:"task"`
}

// TaskStatusResult locates a task on a board.
type TaskStatusResult struct {
	Task     *Task  `json:"task"`
	ColumnID string `json:"columnId"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// OptionalString distinguishes an absent JSON field from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// Some returns a set OptionalString holding v.
func Some(v string) OptionalString {
	return OptionalString{Set: true, Value: &v}
}

// Null returns a set OptionalString holding null.
func Null() OptionalString {
	return OptionalString{Set: true}
}

// IsZero lets omitzero drop unset values.
func (o OptionalString) IsZero() bool {
	return !o.Set
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// TaskPosition is the body of the HTTP reposition route; the board and task
// ids travel in the path.
type TaskPosition struct {
	SourceColumnID      string `json:"sourceColumnId"`
	DestinationColumnID string `json:"destinationColumnId"`
	SourceIndex         *int   `json:"sourceIndex"`
	DestinationIndex    *int   `json:"destinationIndex"`
}

// ListBoardsResponse is returned by the board list route.
type ListBoardsResponse struct {
	Boards []*Board `json:"boards"`
	Total  int      `json:"total"`
}

// BoardNotification is the payload of a board.updated or board.deleted push.
// Board is the canonical board after the save and is nil for deletions.
type BoardNotification struct {
	BoardID   string `json:"boardId"`
	Board     *Board `json:"board,omitempty"`
	Operation string `json:"operation"`
	Deleted   bool   `json:"-"`
}
