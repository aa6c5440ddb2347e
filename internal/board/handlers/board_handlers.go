// Package handlers binds the board service to HTTP routes and websocket
// actions.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/board/dto"
	"github.com/kandev/taskboard/internal/board/service"
	"github.com/kandev/taskboard/internal/common/logger"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

// BoardHandlers serves the board operations.
type BoardHandlers struct {
	service *service.Service
	logger  *logger.Logger
}

// NewBoardHandlers creates handlers for svc.
func NewBoardHandlers(svc *service.Service, log *logger.Logger) *BoardHandlers {
	return &BoardHandlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "board-handlers")),
	}
}

// RegisterRoutes mounts the HTTP routes under /api/v1 and registers the
// websocket actions on dispatcher. Either may be nil.
func RegisterRoutes(router gin.IRouter, dispatcher *ws.Dispatcher, svc *service.Service, log *logger.Logger) *BoardHandlers {
	h := NewBoardHandlers(svc, log)
	if router != nil {
		h.registerHTTP(router.Group("/api/v1"))
	}
	if dispatcher != nil {
		h.registerWS(dispatcher)
	}
	return h
}

func (h *BoardHandlers) registerHTTP(api gin.IRouter) {
	api.GET("/boards", h.httpListBoards)
	api.GET("/boards/:id", h.httpGetBoard)
	api.POST("/boards", h.httpCreateBoard)
	api.PUT("/boards/:id", h.httpReplaceBoard)
	api.DELETE("/boards/:id", h.httpDeleteBoard)

	api.POST("/boards/:id/columns/:columnId/tasks", h.httpAddTask)
	api.PATCH("/boards/:id/columns/:columnId/tasks/:taskId", h.httpUpdateTask)
	api.DELETE("/boards/:id/columns/:columnId/tasks/:taskId", h.httpDeleteTask)
	api.PUT("/boards/:id/tasks/:taskId/position", h.httpMoveTask)
	api.GET("/boards/:id/tasks/:taskId/status", h.httpTaskStatus)
}

func (h *BoardHandlers) registerWS(d *ws.Dispatcher) {
	d.SetErrorMapper(h.wsErrorPayload)

	ws.Route(d, ws.ActionBoardList, h.wsListBoards)
	ws.Route(d, ws.ActionBoardGet, h.wsGetBoard)
	ws.Route(d, ws.ActionBoardCreate, h.wsCreateBoard)
	ws.Route(d, ws.ActionBoardUpdate, h.wsReplaceBoard)
	ws.Route(d, ws.ActionBoardDelete, h.wsDeleteBoard)

	ws.Route(d, ws.ActionTaskAdd, h.wsAddTask)
	ws.Route(d, ws.ActionTaskUpdate, h.wsUpdateTask)
	ws.Route(d, ws.ActionTaskDelete, h.wsDeleteTask)
	ws.Route(d, ws.ActionTaskMove, h.wsMoveTask)
	ws.Route(d, ws.ActionTaskStatus, h.wsTaskStatus)
}

// HTTP handlers

func (h *BoardHandlers) httpListBoards(c *gin.Context) {
	boards, err := h.service.ListBoards(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListBoards(boards))
}

func (h *BoardHandlers) httpGetBoard(c *gin.Context) {
	board, err := h.service.FetchBoard(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *BoardHandlers) httpCreateBoard(c *gin.Context) {
	var body v1.CreateBoardRequest
	if err := bindJSON(c, &body, true); err != nil {
		writeError(c, h.logger, err)
		return
	}
	board, err := h.service.CreateBoard(c.Request.Context(), &body)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, board)
}

func (h *BoardHandlers) httpReplaceBoard(c *gin.Context) {
	var body v1.ReplaceBoardRequest
	if err := bindJSON(c, &body, false); err != nil {
		writeError(c, h.logger, err)
		return
	}
	board, err := h.service.ReplaceBoard(c.Request.Context(), c.Param("id"), &body)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *BoardHandlers) httpDeleteBoard(c *gin.Context) {
	if err := h.service.DeleteBoard(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v1.MessageResponse{Message: service.MsgBoardDeleted})
}

// WS handlers

func (h *BoardHandlers) wsListBoards(ctx context.Context, _ *struct{}) (any, error) {
	boards, err := h.service.ListBoards(ctx)
	if err != nil {
		return nil, err
	}
	return dto.ListBoards(boards), nil
}

func (h *BoardHandlers) wsGetBoard(ctx context.Context, req *dto.BoardIDRequest) (any, error) {
	return h.service.FetchBoard(ctx, req.ID)
}

func (h *BoardHandlers) wsCreateBoard(ctx context.Context, req *v1.CreateBoardRequest) (any, error) {
	return h.service.CreateBoard(ctx, req)
}

func (h *BoardHandlers) wsReplaceBoard(ctx context.Context, req *dto.ReplaceBoardPayload) (any, error) {
	return h.service.ReplaceBoard(ctx, req.ID, &req.ReplaceBoardRequest)
}

func (h *BoardHandlers) wsDeleteBoard(ctx context.Context, req *dto.BoardIDRequest) (any, error) {
	if err := h.service.DeleteBoard(ctx, req.ID); err != nil {
		return nil, err
	}
	return v1.MessageResponse{Message: service.MsgBoardDeleted}, nil
}
