package websocket

// Request actions.
const (
	ActionHealthCheck = "health.check"

	ActionBoardList   = "board.list"
	ActionBoardGet    = "board.get"
	ActionBoardCreate = "board.create"
	ActionBoardUpdate = "board.update"
	ActionBoardDelete = "board.delete"

	ActionTaskAdd    = "task.add"
	ActionTaskUpdate = "task.update"
	ActionTaskDelete = "task.delete"
	ActionTaskMove   = "task.move"
	ActionTaskStatus = "task.status"

	ActionBoardSubscribe   = "board.subscribe"
	ActionBoardUnsubscribe = "board.unsubscribe"
)

// Notification actions (server to client).
const (
	ActionBoardUpdated = "board.updated"
	ActionBoardDeleted = "board.deleted"
)

// Protocol error codes. Board operation failures use the codes of the
// error taxonomy instead.
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
)

// SubscribeRequest is the payload of board.subscribe and board.unsubscribe.
type SubscribeRequest struct {
	BoardID string `json:"boardId"`
}
