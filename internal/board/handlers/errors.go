package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/kandev/taskboard/internal/common/errors"
	"github.com/kandev/taskboard/internal/common/logger"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

// asAppError normalises any failure into an *AppError.
func asAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.InternalError("request failed", err)
}

// writeError renders err as {"error", "code", "details"} with the status of
// its kind. Server-side failures are logged.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	appErr := asAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.WithContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(appErr.HTTPStatus, appErr)
}

// bindJSON decodes the request body into v. An empty body is accepted when
// optional is set.
func bindJSON(c *gin.Context, v any, optional bool) error {
	if err := c.ShouldBindJSON(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.ValidationError("body", "invalid request body: "+err.Error())
	}
	return nil
}

// wsErrorPayload reports a failed websocket action with the same code and
// details as the HTTP error body. Undecodable payloads are validation
// errors.
func (h *BoardHandlers) wsErrorPayload(ctx context.Context, action string, err error) ws.ErrorPayload {
	var payloadErr *ws.PayloadError
	if errors.As(err, &payloadErr) {
		err = apperrors.ValidationError("payload", "invalid payload: "+payloadErr.Err.Error())
	}
	appErr := asAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.WithContext(ctx).Error("websocket request failed", zap.String("action", action), zap.Error(err))
	}
	return ws.ErrorPayload{Message: appErr.Message, Code: appErr.Code, Details: appErr.Details}
}
