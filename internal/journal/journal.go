// Package journal keeps a durable record of every reported sync outcome in an
// embedded SQLite database.
//
// Architecture:
//   - Database file: .wizsync/journal.db under the sync root by default
//   - WAL mode: the daemon writes while `wizsync history` reads
//   - Schema: one sync_events table indexed by time and wizard
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/docwiz/wizsync/internal/report"
)

// DefaultLimit bounds history queries that do not set a limit.
const DefaultLimit = 50

// Journal wraps the SQLite connection holding the event history.
type Journal struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the journal at path and ensures its schema exists.
// Errors recorded through Report are logged to logger; nil discards them.
//
// The caller MUST call Close() when done.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	// A single writer keeps inserts serialized; WAL lets other processes read.
	conn.SetMaxOpenConns(1)

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	j := &Journal{conn: conn, path: path, logger: logger}

	pragmas := []struct {
		stmt string
		what string
	}{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("failed to %s: %w", p.what, err)
		}
	}

	if err := j.InitSchema(context.Background()); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close checkpoints the WAL and closes the connection.
func (j *Journal) Close() error {
	if j.conn == nil {
		return nil
	}

	if _, err := j.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		j.logger.Warn("failed to checkpoint journal WAL", "error", err)
	}

	if err := j.conn.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}

	j.conn = nil
	return nil
}

// InitSchema creates the journal schema if it doesn't exist. It is idempotent.
func (j *Journal) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_events (
		id TEXT PRIMARY KEY,
		at_ms INTEGER NOT NULL,
		level TEXT NOT NULL,
		action TEXT NOT NULL,
		wizard_id INTEGER,
		kind TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sync_events_at ON sync_events(at_ms);
	CREATE INDEX IF NOT EXISTS idx_sync_events_wizard ON sync_events(wizard_id, at_ms);
	`

	if _, err := j.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// Record stores one event.
func (j *Journal) Record(ctx context.Context, ev report.Event) error {
	var wizardID sql.NullInt64
	if ev.WizardID != report.NoWizard {
		wizardID = sql.NullInt64{Int64: int64(ev.WizardID), Valid: true}
	}

	query := `
	INSERT INTO sync_events (id, at_ms, level, action, wizard_id, kind, path, message, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.conn.ExecContext(ctx, query,
		ev.ID,
		ev.Time.UnixMilli(),
		ev.Level.String(),
		string(ev.Action),
		wizardID,
		ev.Kind,
		ev.Path,
		ev.Message,
		ev.ErrText(),
	)
	if err != nil {
		return fmt.Errorf("failed to record event %s: %w", ev.ID, err)
	}
	return nil
}

// Report implements report.Reporter. Failures are logged, never returned.
func (j *Journal) Report(ev report.Event) {
	if err := j.Record(context.Background(), ev); err != nil {
		j.logger.Warn("journal write failed", "error", err)
	}
}

// Query selects journal entries.
type Query struct {
	// Since keeps events at or after this time. Zero means no bound.
	Since time.Time
	// ByWizard keeps only events for WizardID.
	ByWizard bool
	WizardID int
	// Limit keeps the most recent events. Zero means DefaultLimit.
	Limit int
}

// Events returns matching events, oldest first.
func (j *Journal) Events(ctx context.Context, q Query) ([]report.Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
	SELECT id, at_ms, level, action, wizard_id, kind, path, message, error
	FROM sync_events
	WHERE at_ms >= ? AND (? = 0 OR wizard_id = ?)
	ORDER BY at_ms DESC, rowid DESC
	LIMIT ?
	`
	byWizard := 0
	if q.ByWizard {
		byWizard = 1
	}
	rows, err := j.conn.QueryContext(ctx, query, sinceMillis(q.Since), byWizard, q.WizardID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var events []report.Event
	for rows.Next() {
		var (
			ev       report.Event
			atMS     int64
			level    string
			action   string
			wizardID sql.NullInt64
			errText  string
		)
		if err := rows.Scan(&ev.ID, &atMS, &level, &action, &wizardID, &ev.Kind, &ev.Path, &ev.Message, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		ev.Time = time.UnixMilli(atMS)
		ev.Level = report.ParseLevel(level)
		ev.Action = report.Action(action)
		ev.WizardID = report.NoWizard
		if wizardID.Valid {
			ev.WizardID = int(wizardID.Int64)
		}
		if errText != "" {
			ev.Err = errors.New(errText)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal rows: %w", err)
	}

	// Rows come newest first so LIMIT keeps the latest; present them in order.
	for i, k := 0, len(events)-1; i < k; i, k = i+1, k-1 {
		events[i], events[k] = events[k], events[i]
	}
	return events, nil
}

// Counts returns how many events of each action were recorded since the
// given time.
func (j *Journal) Counts(ctx context.Context, since time.Time) (map[report.Action]int, error) {
	rows, err := j.conn.QueryContext(ctx,
		`SELECT action, COUNT(*) FROM sync_events WHERE at_ms >= ? GROUP BY action`,
		sinceMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to count journal events: %w", err)
	}
	defer rows.Close()

	counts := make(map[report.Action]int)
	for rows.Next() {
		var (
			action string
			n      int
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("failed to scan journal count: %w", err)
		}
		counts[report.Action(action)] = n
	}
	return counts, rows.Err()
}

func sinceMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
