// Package sqlite stores board documents in a SQL table through sqlx. The
// same code serves SQLite (mattn/go-sqlite3) and PostgreSQL (pgx stdlib);
// the handful of differences live in internal/db/dialect.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/db"
	"github.com/kandev/taskboard/internal/db/dialect"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// Repository is a board store backed by one row per board.
type Repository struct {
	db    *sqlx.DB // writer
	ro    *sqlx.DB // reader
	close func() error
}

var _ repository.Repository = (*Repository)(nil)

// New creates a repository on pool and takes ownership of it.
func New(pool *db.Pool) (*Repository, error) {
	return newRepository(pool.Writer(), pool.Reader(), pool.Close)
}

// NewWithDB creates a repository on shared connections. The caller keeps
// ownership and closes them. A nil reader reads through the writer.
func NewWithDB(writer, reader *sqlx.DB) (*Repository, error) {
	return newRepository(writer, reader, nil)
}

func newRepository(writer, reader *sqlx.DB, closeFn func() error) (*Repository, error) {
	if reader == nil {
		reader = writer
	}
	repo := &Repository{db: writer, ro: reader, close: closeFn}
	if err := repo.initSchema(); err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

func (r *Repository) driver() string {
	return r.db.DriverName()
}

func (r *Repository) initSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS boards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		document %s NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`, dialect.DocumentType(r.driver()))
	if _, err := r.db.Exec(schema); err != nil {
		return err
	}
	_, err := r.db.Exec(`CREATE INDEX IF NOT EXISTS idx_boards_created_at ON boards(created_at)`)
	return err
}

type boardRow struct {
	ID       string `db:"id"`
	Document string `db:"document"`
}

func encode(b *v1.Board) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode board %s: %w", b.ID, err)
	}
	return string(data), nil
}

func decode(row boardRow) (*v1.Board, error) {
	var b v1.Board
	if err := json.Unmarshal([]byte(row.Document), &b); err != nil {
		return nil, fmt.Errorf("decode board %s: %w", row.ID, err)
	}
	return &b, nil
}

// Create inserts a new board row.
func (r *Repository) Create(ctx context.Context, board *v1.Board) (*v1.Board, error) {
	b := repository.PrepareNew(board, repository.Now())
	doc, err := encode(b)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO boards (id, name, document, created_at, updated_at)
		VALUES (?, ?, %s, ?, ?)`, dialect.DocumentParam(r.driver()))
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		b.ID, b.Name, doc, b.CreatedAt.UnixMilli(), b.UpdatedAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("insert board %s: %w", b.ID, err)
	}
	return b, nil
}

// Load reads one board.
func (r *Repository) Load(ctx context.Context, id string) (*v1.Board, error) {
	var row boardRow
	query := fmt.Sprintf(`SELECT id, %s AS document FROM boards WHERE id = ?`,
		dialect.DocumentSelect(r.driver(), "document"))
	err := r.ro.GetContext(ctx, &row, r.ro.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", repository.ErrBoardNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", id, err)
	}
	return decode(row)
}

// Save overwrites the stored document in a single UPDATE.
func (r *Repository) Save(ctx context.Context, board *v1.Board) (*v1.Board, error) {
	doc, err := encode(board)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`UPDATE boards SET name = ?, document = %s, updated_at = ? WHERE id = ?`,
		dialect.DocumentParam(r.driver()))
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		board.Name, doc, board.UpdatedAt.UnixMilli(), board.ID)
	if err != nil {
		return nil, fmt.Errorf("save board %s: %w", board.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrBoardNotFound, board.ID)
	}
	return board.Clone(), nil
}

// Delete removes a board row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM boards WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete board %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", repository.ErrBoardNotFound, id)
	}
	return nil
}

// List returns every board, newest first.
func (r *Repository) List(ctx context.Context) ([]*v1.Board, error) {
	var rows []boardRow
	query := fmt.Sprintf(`SELECT id, %s AS document FROM boards ORDER BY created_at DESC, id ASC`,
		dialect.DocumentSelect(r.driver(), "document"))
	if err := r.ro.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	boards := make([]*v1.Board, 0, len(rows))
	var errs []string
	for _, row := range rows {
		b, err := decode(row)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		boards = append(boards, b)
	}
	if len(errs) > 0 {
		return boards, fmt.Errorf("list boards: %s", strings.Join(errs, "; "))
	}
	return boards, nil
}

// Close releases the pool when the repository owns it.
func (r *Repository) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}
