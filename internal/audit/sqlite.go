package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// sqliteSink inserts one row per entry. Each insert is its own transaction
// and synchronous=FULL makes it durable before Write returns.
type sqliteSink struct {
	db     *sql.DB
	insert *sql.Stmt
}

// NewSQLiteSink opens (or creates) an audit database at path
func NewSQLiteSink(path string) (Sink, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		time   TEXT NOT NULL,
		run_id TEXT NOT NULL,
		verb   TEXT NOT NULL,
		path   TEXT NOT NULL DEFAULT '',
		dest   TEXT NOT NULL DEFAULT '',
		error  TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_entries(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO audit_entries (time, run_id, verb, path, dest, error, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare audit insert: %w", err)
	}

	return &sqliteSink{db: db, insert: stmt}, nil
}

func (s *sqliteSink) Write(e Entry) error {
	_, err := s.insert.Exec(
		e.Time.UTC().Format(time.RFC3339Nano),
		e.RunID,
		string(e.Verb),
		e.Path,
		e.Dest,
		e.Error,
		e.Detail,
	)
	return err
}

func (s *sqliteSink) Close() error {
	s.insert.Close()
	return s.db.Close()
}
