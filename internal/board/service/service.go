// Package service implements the board mutation API. Every operation is a
// complete load, mutate, save round trip against the repository with no
// locking across operations: two concurrent mutations of one board race
// and the last save wins.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/board/repository"
	apperrors "github.com/kandev/taskboard/internal/common/errors"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/common/tracing"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// Response messages.
const (
	MsgTaskDeleted  = "Task deleted successfully"
	MsgTaskMoved    = "Task status updated successfully"
	MsgBoardDeleted = "Board deleted successfully"
)

const eventSource = "board-service"

// Options configures defaults for boards created without explicit values.
type Options struct {
	DefaultName string
	SeedUsers   []v1.User
	// Namespace prefixes event subjects.
	Namespace string
}

// Service implements the board operations.
type Service struct {
	repo     repository.Repository
	eventBus bus.EventBus
	subjects events.Subjects
	logger   *logger.Logger
	tracer   trace.Tracer
	opts     Options

	now   func() time.Time
	newID func() string
}

// NewService creates a board service. eventBus may be nil.
func NewService(repo repository.Repository, eventBus bus.EventBus, log *logger.Logger, opts Options) *Service {
	if opts.DefaultName == "" {
		opts.DefaultName = v1.DefaultBoardName
	}
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		subjects: events.Subjects{Namespace: opts.Namespace},
		logger:   log.WithFields(zap.String("component", "board-service")),
		tracer:   tracing.Tracer("board-service"),
		opts:     opts,
		now:      repository.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "board."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.CodeOf(err))
	}
	span.End()
}

// validate converts struct validation failures into ValidationError.
func validate(v any) error {
	if err := v1.Validate(v); err != nil {
		var fe *v1.FieldError
		if errors.As(err, &fe) {
			return apperrors.ValidationError(fe.Field, fe.Message)
		}
		return apperrors.ValidationError("body", err.Error())
	}
	return nil
}

func validateLayout(cols []v1.Column, users []v1.User) error {
	if err := v1.ValidateLayout(cols, users); err != nil {
		var fe *v1.FieldError
		if errors.As(err, &fe) {
			return apperrors.ValidationError(fe.Field, fe.Message)
		}
		return apperrors.ValidationError("columns", err.Error())
	}
	return nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.ValidationError(name, "is required")
	}
	return nil
}

// storageErr maps repository errors onto the failure kinds.
func storageErr(err error, boardID string) error {
	if errors.Is(err, repository.ErrBoardNotFound) {
		return apperrors.BoardNotFound(boardID)
	}
	return apperrors.StorageFailure(err)
}

func (s *Service) load(ctx context.Context, boardID string) (*v1.Board, error) {
	b, err := s.repo.Load(ctx, boardID)
	if err != nil {
		return nil, storageErr(err, boardID)
	}
	return b, nil
}

// save stamps the board and persists it, then announces the canonical
// result to viewers.
func (s *Service) save(ctx context.Context, b *v1.Board, now time.Time, op string) (*v1.Board, error) {
	b.UpdatedAt = now
	saved, err := s.repo.Save(ctx, b)
	if err != nil {
		return nil, storageErr(err, b.ID)
	}
	s.publish(ctx, events.BoardUpdated, saved.ID, saved, op)
	return saved, nil
}

func (s *Service) publish(ctx context.Context, eventType, boardID string, b *v1.Board, op string) {
	if s.eventBus == nil {
		return
	}
	event, err := bus.NewEvent(eventType, eventSource, events.BoardChanged{BoardID: boardID, Board: b, Operation: op})
	if err != nil {
		s.logger.Error("failed to build board event", zap.String("board_id", boardID), zap.Error(err))
		return
	}
	if err := s.eventBus.Publish(ctx, s.subjects.Board(eventType, boardID), event); err != nil {
		s.logger.Warn("failed to publish board event",
			zap.String("board_id", boardID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func (s *Service) seedUsers() []v1.User {
	return v1.CloneUsers(s.opts.SeedUsers)
}
