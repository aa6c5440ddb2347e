// Package client is an HTTP client for the taskboard API. It implements the
// remote side of the board store and reports failures as *errors.AppError
// so callers see the same kinds as the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/kandev/taskboard/internal/common/errors"
	"github.com/kandev/taskboard/internal/common/logger"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// Client talks to one taskboard server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.WithFields(zap.String("component", "taskboard-client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func boardPath(boardID string, rest ...string) string {
	parts := []string{"/api/v1/boards", url.PathEscape(boardID)}
	for _, r := range rest {
		parts = append(parts, url.PathEscape(r))
	}
	return strings.Join(parts, "/")
}

// ListBoards returns every board, newest first.
func (c *Client) ListBoards(ctx context.Context) ([]*v1.Board, error) {
	var resp v1.ListBoardsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/boards", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Boards, nil
}

// FetchBoard returns the board with id.
func (c *Client) FetchBoard(ctx context.Context, id string) (*v1.Board, error) {
	if id == "" {
		return nil, apperrors.ValidationError("boardId", "is required")
	}
	var board v1.Board
	if err := c.do(ctx, http.MethodGet, boardPath(id), nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// CreateBoard creates a board.
func (c *Client) CreateBoard(ctx context.Context, req *v1.CreateBoardRequest) (*v1.Board, error) {
	var board v1.Board
	if err := c.do(ctx, http.MethodPost, "/api/v1/boards", req, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// ReplaceBoard replaces a board's columns and users.
func (c *Client) ReplaceBoard(ctx context.Context, id string, req *v1.ReplaceBoardRequest) (*v1.Board, error) {
	var board v1.Board
	if err := c.do(ctx, http.MethodPut, boardPath(id), req, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// DeleteBoard removes a board.
func (c *Client) DeleteBoard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, boardPath(id), nil, nil)
}

// AddTask appends a task to a column.
func (c *Client) AddTask(ctx context.Context, req *v1.AddTaskRequest) (*v1.TaskResult, error) {
	var res v1.TaskResult
	path := boardPath(req.BoardID, "columns", req.ColumnID, "tasks")
	if err := c.do(ctx, http.MethodPost, path, req.Task, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateTask applies a partial update to a task.
func (c *Client) UpdateTask(ctx context.Context, req *v1.UpdateTaskRequest) (*v1.TaskResult, error) {
	var res v1.TaskResult
	path := boardPath(req.BoardID, "columns", req.ColumnID, "tasks", req.TaskID)
	if err := c.do(ctx, http.MethodPatch, path, req.Updates, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, req *v1.DeleteTaskRequest) (*v1.DeleteTaskResult, error) {
	var res v1.DeleteTaskResult
	path := boardPath(req.BoardID, "columns", req.ColumnID, "tasks", req.TaskID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// MoveTask repositions a task.
func (c *Client) MoveTask(ctx context.Context, req *v1.MoveTaskRequest) (*v1.MoveTaskResult, error) {
	var res v1.MoveTaskResult
	body := v1.TaskPosition{
		SourceColumnID:      req.SourceColumnID,
		DestinationColumnID: req.DestinationColumnID,
		SourceIndex:         req.SourceIndex,
		DestinationIndex:    req.DestinationIndex,
	}
	if err := c.do(ctx, http.MethodPut, boardPath(req.BoardID, "tasks", req.TaskID, "position"), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// TaskStatus reports which column holds a task.
func (c *Client) TaskStatus(ctx context.Context, boardID, taskID string) (*v1.TaskStatusResult, error) {
	var res v1.TaskStatusResult
	if err := c.do(ctx, http.MethodGet, boardPath(boardID, "tasks", taskID, "status"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// errorBody mirrors the server's error response.
type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.Unmarshal(respBody, &eb); err != nil {
			eb.Error = truncateBody(respBody)
		}
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", eb.Code))
		return apperrors.FromResponse(resp.StatusCode, eb.Code, eb.Error, eb.Details)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response (status %d, body: %s): %w", resp.StatusCode, truncateBody(respBody), err)
	}
	return nil
}

func truncateBody(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
