// Package dto holds transport payloads that wrap the v1 request types with
// the ids a websocket request carries in its body instead of a URL path.
package dto

import (
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// BoardIDRequest addresses one board.
type BoardIDRequest struct {
	ID string `json:"id"`
}

// ReplaceBoardPayload is the board.update websocket payload.
type ReplaceBoardPayload struct {
	ID string `json:"id"`
	v1.ReplaceBoardRequest
}

// TaskStatusRequest is the task.status websocket payload.
type TaskStatusRequest struct {
	BoardID string `json:"boardId"`
	TaskID  string `json:"taskId"`
}

// MoveRequest combines path ids with a TaskPosition body.
func MoveRequest(boardID, taskID string, pos v1.TaskPosition) *v1.MoveTaskRequest {
	return &v1.MoveTaskRequest{
		BoardID:             boardID,
		TaskID:              taskID,
		SourceColumnID:      pos.SourceColumnID,
		DestinationColumnID: pos.DestinationColumnID,
		SourceIndex:         pos.SourceIndex,
		DestinationIndex:    pos.DestinationIndex,
	}
}

// ListBoards wraps boards for the list response. The slice is never nil so
// it encodes as [].
func ListBoards(boards []*v1.Board) v1.ListBoardsResponse {
	if boards == nil {
		boards = []*v1.Board{}
	}
	return v1.ListBoardsResponse{Boards: boards, Total: len(boards)}
}
