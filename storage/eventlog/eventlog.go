package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"limitlesswork/core/events"
	"limitlesswork/core/types"
)

// DefaultLimit caps List when the caller does not choose a page size.
const DefaultLimit = 100

// MaxLimit is the largest page List returns.
const MaxLimit = 1000

// Entry is one committed event as persisted in the audit log.
type Entry struct {
	Sequence   int64             `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Filter selects a page of the log. Entries are returned in sequence order
// starting after After.
type Filter struct {
	Type  string
	After int64
	Limit int
}

// Log persists committed ledger events to SQLite so operators can audit
// escrow activity after the fact.
type Log struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// Open creates or opens the event log at path. ":memory:" keeps the log in
// process memory.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	l := &Log{db: db, now: time.Now, logger: slog.Default().With("component", "eventlog")}
	if err := l.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS events (
            sequence INTEGER PRIMARY KEY AUTOINCREMENT,
            type TEXT NOT NULL,
            payload TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS events_type ON events(type, sequence);`,
	}
	for _, stmt := range schema {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("eventlog schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Append stores evt and returns its sequence number.
func (l *Log) Append(ctx context.Context, evt *types.Event) (int64, error) {
	if evt == nil || evt.Type == "" {
		return 0, fmt.Errorf("eventlog: event type required")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		return 0, err
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO events(type, payload, created_at) VALUES(?, ?, ?)`,
		evt.Type, string(payload), l.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Emit implements events.Emitter. Failures are logged; the ledger commit has
// already happened by the time events are flushed.
func (l *Log) Emit(e events.Event) {
	evt := events.Render(e)
	if evt == nil {
		return
	}
	if _, err := l.Append(context.Background(), evt); err != nil {
		l.logger.Error("append event", "type", evt.Type, "error", err)
	}
}

// List returns entries matching f.
func (l *Log) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	query := `SELECT sequence, type, payload, created_at FROM events WHERE sequence > ?`
	args := []any{f.After}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	query += ` ORDER BY sequence ASC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry   Entry
			payload string
			created int64
		)
		if err := rows.Scan(&entry.Sequence, &entry.Type, &payload, &created); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.UnixMilli(created).UTC()
		if err := json.Unmarshal([]byte(payload), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", entry.Sequence, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Count returns the number of stored events of eventType, or of all types
// when eventType is empty.
func (l *Log) Count(ctx context.Context, eventType string) (int64, error) {
	var (
		n   int64
		err error
	)
	if eventType == "" {
		err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	} else {
		err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE type = ?`, eventType).Scan(&n)
	}
	return n, err
}
