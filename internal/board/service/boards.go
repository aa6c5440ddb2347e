package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	apperrors "github.com/kandev/taskboard/internal/common/errors"
	"github.com/kandev/taskboard/internal/events"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// FetchBoard returns the persisted board. An empty id creates a new default
// board seeded with the configured users.
func (s *Service) FetchBoard(ctx context.Context, id string) (_ *v1.Board, err error) {
	ctx, span := s.startSpan(ctx, "FetchBoard", attribute.String("board.id", id))
	defer func() { endSpan(span, err) }()

	if id == "" {
		return s.createBoard(ctx, &v1.CreateBoardRequest{Users: s.seedUsers()})
	}
	return s.load(ctx, id)
}

// ListBoards returns every board, newest first.
func (s *Service) ListBoards(ctx context.Context) (_ []*v1.Board, err error) {
	ctx, span := s.startSpan(ctx, "ListBoards")
	defer func() { endSpan(span, err) }()

	boards, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.StorageFailure(err)
	}
	return boards, nil
}

// CreateBoard creates a board. Omitted name, columns and users take the
// defaults: the configured name, the three standard columns and no users.
func (s *Service) CreateBoard(ctx context.Context, req *v1.CreateBoardRequest) (_ *v1.Board, err error) {
	ctx, span := s.startSpan(ctx, "CreateBoard")
	defer func() { endSpan(span, err) }()

	if req == nil {
		req = &v1.CreateBoardRequest{}
	}
	return s.createBoard(ctx, req)
}

func (s *Service) createBoard(ctx context.Context, req *v1.CreateBoardRequest) (*v1.Board, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if err := validateLayout(req.Columns, req.Users); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = s.opts.DefaultName
	}
	board := &v1.Board{
		Name:    name,
		Columns: v1.CloneColumns(req.Columns),
		Users:   v1.CloneUsers(req.Users),
	}
	created, err := s.repo.Create(ctx, board)
	if err != nil {
		return nil, apperrors.StorageFailure(err)
	}

	s.logger.Info("board created", zap.String("board_id", created.ID), zap.String("name", created.Name))
	s.publish(ctx, events.BoardCreated, created.ID, created, "board.create")
	return created, nil
}

// ReplaceBoard replaces the columns and users of a board wholesale.
func (s *Service) ReplaceBoard(ctx context.Context, id string, req *v1.ReplaceBoardRequest) (_ *v1.Board, err error) {
	ctx, span := s.startSpan(ctx, "ReplaceBoard", attribute.String("board.id", id))
	defer func() { endSpan(span, err) }()

	if err := requireField("boardId", id); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.ValidationError("columns", "is required")
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	if err := validateLayout(req.Columns, req.Users); err != nil {
		return nil, err
	}

	board, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	board.Columns = v1.CloneColumns(req.Columns)
	for i := range board.Columns {
		if board.Columns[i].Tasks == nil {
			board.Columns[i].Tasks = []v1.Task{}
		}
	}
	board.Users = v1.CloneUsers(req.Users)
	if board.Users == nil {
		board.Users = []v1.User{}
	}
	return s.save(ctx, board, s.now(), "board.replace")
}

// DeleteBoard removes a board.
func (s *Service) DeleteBoard(ctx context.Context, id string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteBoard", attribute.String("board.id", id))
	defer func() { endSpan(span, err) }()

	if err := requireField("boardId", id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storageErr(err, id)
	}
	s.logger.Info("board deleted", zap.String("board_id", id))
	s.publish(ctx, events.BoardDeleted, id, nil, "board.delete")
	return nil
}
