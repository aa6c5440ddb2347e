package db

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kandev/taskboard/internal/db/dialect"
)

const (
	// A board save is one UPDATE, so a writer rarely holds the lock for long.
	sqliteBusyTimeout = 5 * time.Second
	sqliteReaderConns = 4
)

// sqliteDSN builds the go-sqlite3 URI for the board file. The writer
// creates the file and runs it in WAL mode; readers open it read-only.
func sqliteDSN(path string, readOnly bool) string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.FormatInt(sqliteBusyTimeout.Milliseconds(), 10))
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("mode", "rwc")
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + path + "?" + q.Encode()
}

// OpenSQLite opens the board file at path, creating it and its directory
// when missing. Saves go through one writer connection; loads and lists use
// a small read-only pool.
func OpenSQLite(path string) (*Pool, error) {
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("sqlite board store needs a file path, got %q", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", abs, err)
	}

	writer, err := sqlx.Open(dialect.SQLite3, sqliteDSN(abs, false))
	if err != nil {
		return nil, fmt.Errorf("open sqlite writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	// the read-only pool cannot open a file the writer has not created yet
	if err := writer.Ping(); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}

	reader, err := sqlx.Open(dialect.SQLite3, sqliteDSN(abs, true))
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open sqlite reader: %w", err)
	}
	reader.SetMaxOpenConns(sqliteReaderConns)
	reader.SetMaxIdleConns(sqliteReaderConns)

	return &Pool{writer: writer, reader: reader}, nil
}
