package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kandev/taskboard/internal/board/dto"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// HTTP handlers

func (h *BoardHandlers) httpAddTask(c *gin.Context) {
	var draft v1.TaskDraft
	if err := bindJSON(c, &draft, false); err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.service.AddTask(c.Request.Context(), &v1.AddTaskRequest{
		BoardID:  c.Param("id"),
		ColumnID: c.Param("columnId"),
		Task:     draft,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *BoardHandlers) httpUpdateTask(c *gin.Context) {
	var updates v1.TaskUpdates
	if err := bindJSON(c, &updates, false); err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.service.UpdateTask(c.Request.Context(), &v1.UpdateTaskRequest{
		BoardID:  c.Param("id"),
		ColumnID: c.Param("columnId"),
		TaskID:   c.Param("taskId"),
		Updates:  updates,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *BoardHandlers) httpDeleteTask(c *gin.Context) {
	res, err := h.service.DeleteTask(c.Request.Context(), &v1.DeleteTaskRequest{
		BoardID:  c.Param("id"),
		ColumnID: c.Param("columnId"),
		TaskID:   c.Param("taskId"),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *BoardHandlers) httpMoveTask(c *gin.Context) {
	var pos v1.TaskPosition
	if err := bindJSON(c, &pos, false); err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.service.RepositionTask(c.Request.Context(), dto.MoveRequest(c.Param("id"), c.Param("taskId"), pos))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *BoardHandlers) httpTaskStatus(c *gin.Context) {
	res, err := h.service.TaskStatus(c.Request.Context(), c.Param("id"), c.Param("taskId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// WS handlers

func (h *BoardHandlers) wsAddTask(ctx context.Context, req *v1.AddTaskRequest) (any, error) {
	return h.service.AddTask(ctx, req)
}

func (h *BoardHandlers) wsUpdateTask(ctx context.Context, req *v1.UpdateTaskRequest) (any, error) {
	return h.service.UpdateTask(ctx, req)
}

func (h *BoardHandlers) wsDeleteTask(ctx context.Context, req *v1.DeleteTaskRequest) (any, error) {
	return h.service.DeleteTask(ctx, req)
}

func (h *BoardHandlers) wsMoveTask(ctx context.Context, req *v1.MoveTaskRequest) (any, error) {
	return h.service.RepositionTask(ctx, req)
}

func (h *BoardHandlers) wsTaskStatus(ctx context.Context, req *dto.TaskStatusRequest) (any, error) {
	return h.service.TaskStatus(ctx, req.BoardID, req.TaskID)
}
