package db

import (
	"github.com/jmoiron/sqlx"

	"github.com/kandev/taskboard/internal/db/dialect"
)

// Pool holds the connections of a SQL board store. On SQLite the writer
// is a single connection next to a read-only pool; on PostgreSQL both
// are the same *sqlx.DB.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

// Writer is used for INSERT, UPDATE and DELETE.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader is used for SELECT.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// Close closes the connections. SQLite refreshes its planner statistics
// first.
func (p *Pool) Close() error {
	if p.writer.DriverName() == dialect.SQLite3 {
		_, _ = p.writer.Exec("PRAGMA optimize")
	}
	err := p.writer.Close()
	if p.reader != p.writer {
		if rErr := p.reader.Close(); rErr != nil && err == nil {
			err = rErr
		}
	}
	return err
}
