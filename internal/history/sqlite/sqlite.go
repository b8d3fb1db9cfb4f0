package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loykin/cronreg/internal/history"
)

// Sink writes history events to a SQLite database.
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite history sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a :memory: database only lives as long as its connection
	db.SetMaxOpenConns(1)

	sink := &Sink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sink, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS cronreg_history(
		occurred_at TEXT NOT NULL,
		event TEXT NOT NULL,
		run_id TEXT NOT NULL,
		crontab_user TEXT NOT NULL DEFAULT '',
		entry TEXT NOT NULL DEFAULT '',
		marker TEXT NOT NULL,
		removed INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		changed BOOLEAN NOT NULL,
		error TEXT
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	rec := e.Record
	var errText interface{}
	if rec.Error != "" {
		errText = rec.Error
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cronreg_history(occurred_at, event, run_id, crontab_user, entry, marker, removed, entries, changed, error)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC().Format(time.RFC3339Nano), string(e.Type), rec.RunID, rec.User, rec.Entry,
		rec.Marker, rec.Removed, rec.Entries, rec.Changed, errText)
	return err
}

// Recent returns up to limit events, newest first.
func (s *Sink) Recent(ctx context.Context, limit int) ([]history.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, event, run_id, crontab_user, entry, marker, removed, entries, changed, error
		FROM cronreg_history ORDER BY rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []history.Event
	for rows.Next() {
		var (
			e        history.Event
			occurred string
			evt      string
			errText  sql.NullString
		)
		if err := rows.Scan(&occurred, &evt, &e.Record.RunID, &e.Record.User, &e.Record.Entry,
			&e.Record.Marker, &e.Record.Removed, &e.Record.Entries, &e.Record.Changed, &errText); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, occurred)
		if err != nil {
			return nil, err
		}
		e.OccurredAt = t
		e.Type = history.EventType(evt)
		e.Record.Error = errText.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
