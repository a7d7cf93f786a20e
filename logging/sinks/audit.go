package sinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/michaelt919/TES3MP/logging"
)

// Audit stores warnings and errors in a sqlite table so repeated protocol
// violations can be queried after the fact.
type Audit struct {
	db          *sql.DB
	insert      *sql.Stmt
	minSeverity logging.Severity
}

// AuditRow is one stored event.
type AuditRow struct {
	Type     string
	Peer     string
	Actor    string
	Severity logging.Severity
	Category string
	Payload  string
	Time     time.Time
}

// OpenAudit opens or creates the sqlite database at cfg.Path.
func OpenAudit(cfg logging.AuditConfig) (*Audit, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("empty audit db path")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			peer TEXT NOT NULL,
			actor TEXT NOT NULL,
			severity INTEGER NOT NULL,
			category TEXT NOT NULL,
			payload TEXT NOT NULL,
			trace_id TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS audit_events_type ON audit_events(type);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init audit schema: %w", err)
		}
	}
	insert, err := db.Prepare(`INSERT INTO audit_events
		(type, peer, actor, severity, category, payload, trace_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Audit{db: db, insert: insert, minSeverity: cfg.MinimumSeverity}, nil
}

// Write satisfies logging.Sink.
func (a *Audit) Write(event logging.Event) error {
	if event.Severity < a.minSeverity {
		return nil
	}
	payload := []byte("null")
	if event.Payload != nil {
		encoded, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}
		payload = encoded
	}
	_, err := a.insert.Exec(
		string(event.Type),
		event.Peer,
		event.Actor.ID,
		int(event.Severity),
		event.Category,
		string(payload),
		event.TraceID,
		event.Time.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Query returns stored events of the given type, oldest first. An empty
// type returns every row.
func (a *Audit) Query(ctx context.Context, eventType logging.EventType) ([]AuditRow, error) {
	query := `SELECT type, peer, actor, severity, category, payload, recorded_at FROM audit_events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id`
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var (
			row      AuditRow
			severity int
			recorded string
		)
		if err := rows.Scan(&row.Type, &row.Peer, &row.Actor, &severity, &row.Category, &row.Payload, &recorded); err != nil {
			return nil, err
		}
		row.Severity = logging.Severity(severity)
		row.Time, _ = time.Parse(time.RFC3339Nano, recorded)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close releases the database.
func (a *Audit) Close(context.Context) error {
	if a.insert != nil {
		_ = a.insert.Close()
	}
	return a.db.Close()
}
