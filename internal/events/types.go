// Package events names the board change events and their subjects.
package events

import (
	"strings"

	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// Event types.
const (
	BoardCreated = "board.created"
	BoardUpdated = "board.updated"
	BoardDeleted = "board.deleted"
)

// BoardChanged is the payload of every board event. Board is nil for
// deletions.
type BoardChanged struct {
	BoardID string    `json:"boardId"`
	Board   *v1.Board `json:"board,omitempty"`
	// Operation that produced the change, e.g. "task.move".
	Operation string `json:"operation"`
}

// Subjects builds namespaced subjects so several deployments can share a
// NATS server.
type Subjects struct {
	Namespace string
}

func (s Subjects) prefix(subject string) string {
	ns := strings.TrimSpace(s.Namespace)
	if ns == "" {
		return subject
	}
	return ns + "." + subject
}

// Board returns the subject for eventType on one board,
// e.g. "board.updated.<id>".
func (s Subjects) Board(eventType, boardID string) string {
	return s.prefix(eventType + "." + boardID)
}

// AllBoards matches every board event.
func (s Subjects) AllBoards() string {
	return s.prefix("board.>")
}
