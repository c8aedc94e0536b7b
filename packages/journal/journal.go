// Package journal keeps a local SQLite record of the results filed by each
// session, so a scheduled session can later be run against the same remote
// results and failed tests can be found again.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/logging"
)

// DefaultPath is the journal location relative to the working directory.
const DefaultPath = ".snot/journal.db"

// Latest selects the most recent session wherever a session id is accepted.
const Latest = "latest"

var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	created_at    INTEGER NOT NULL,
	project       TEXT NOT NULL DEFAULT '',
	test_run_name TEXT NOT NULL DEFAULT '',
	test_run_id   TEXT NOT NULL DEFAULT '',
	schedule_only INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS results (
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	identity    TEXT NOT NULL,
	result_id   TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	group_key   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (session_id, identity)
);`

// Session is one invocation of run or schedule.
type Session struct {
	ID           string
	CreatedAt    time.Time
	Project      string
	TestRunName  string
	TestRunID    string
	ScheduleOnly bool
}

// Entry is the last known state of one result in a session.
type Entry struct {
	SessionID      string
	Identity       string
	ResultID       string
	Name           string
	GroupKey       string
	Status         runner.Status
	Outcome        runner.Outcome
	DurationMillis int64
	UpdatedAt      time.Time
}

// Journal is a handle on the journal database.
type Journal struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
	now          func() time.Time
	logger       *log.Logger
}

// Open opens, creating if needed, the journal at connectionString. Accepted
// forms are sqlite://path, sqlite:path and a plain file path.
func Open(connectionString string) (*Journal, error) {
	path := parseConnectionString(connectionString)
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// a single connection keeps :memory: databases alive between calls
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	return &Journal{
		db:           db,
		path:         path,
		queryTimeout: 30 * time.Second,
		now:          time.Now,
		logger:       logging.New("journal"),
	}, nil
}

func parseConnectionString(connStr string) string {
	connStr = strings.TrimSpace(connStr)
	if strings.HasPrefix(connStr, "sqlite://") {
		return strings.TrimPrefix(connStr, "sqlite://")
	}
	if strings.HasPrefix(connStr, "sqlite:") {
		return strings.TrimPrefix(connStr, "sqlite:")
	}
	return connStr
}

// Path returns the database file.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func (j *Journal) context(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, j.queryTimeout)
}

// NewSession stores s under a fresh id and returns it.
func (j *Journal) NewSession(ctx context.Context, s Session) (*Session, error) {
	ctx, cancel := j.context(ctx)
	defer cancel()

	s.ID = uuid.NewString()
	s.CreatedAt = j.now()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, project, test_run_name, test_run_id, schedule_only) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.CreatedAt.UnixNano(), s.Project, s.TestRunName, s.TestRunID, s.ScheduleOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	j.logger.Debug("session created", "id", s.ID, "scheduleOnly", s.ScheduleOnly)
	return &s, nil
}

// SetTestRun records the remote test run of a session.
func (j *Journal) SetTestRun(ctx context.Context, sessionID, testRunID string) error {
	ctx, cancel := j.context(ctx)
	defer cancel()

	res, err := j.db.ExecContext(ctx, `UPDATE sessions SET test_run_id = ? WHERE id = ?`, testRunID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// Session returns the session id, or the most recent one for Latest.
func (j *Journal) Session(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := j.context(ctx)
	defer cancel()

	query := `SELECT id, created_at, project, test_run_name, test_run_id, schedule_only FROM sessions WHERE id = ?`
	args := []any{id}
	if id == "" || id == Latest {
		query = `SELECT id, created_at, project, test_run_name, test_run_id, schedule_only FROM sessions ORDER BY created_at DESC LIMIT 1`
		args = nil
	}

	s, err := scanSession(j.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return s, nil
}

// Sessions lists every session, newest first.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	ctx, cancel := j.context(ctx)
	defer cancel()

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, created_at, project, test_run_name, test_run_id, schedule_only FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		s       Session
		created int64
	)
	if err := row.Scan(&s.ID, &created, &s.Project, &s.TestRunName, &s.TestRunID, &s.ScheduleOnly); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(0, created)
	return &s, nil
}

// Record upserts the state of every record with a remote id.
func (j *Journal) Record(ctx context.Context, sessionID string, records []*runner.ResultRecord) error {
	ctx, cancel := j.context(ctx)
	defer cancel()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (session_id, identity, result_id, name, group_key, status, outcome, duration_ms, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, identity) DO UPDATE SET
			result_id = excluded.result_id,
			name = excluded.name,
			group_key = excluded.group_key,
			status = excluded.status,
			outcome = excluded.outcome,
			duration_ms = excluded.duration_ms,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := j.now().UnixNano()
	written := 0
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, sessionID, rec.Identity, rec.ID, rec.Name, rec.GroupKey,
			rec.Status.String(), rec.Outcome.String(), rec.DurationMillis, now); err != nil {
			return fmt.Errorf("failed to record %s: %w", rec.Identity, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	j.logger.Debug("recorded results", "session", sessionID, "count", written)
	return nil
}

// Entries returns the results of a session ordered by identity.
func (j *Journal) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	ctx, cancel := j.context(ctx)
	defer cancel()

	rows, err := j.db.QueryContext(ctx, `
		SELECT session_id, identity, result_id, name, group_key, status, outcome, duration_ms, updated_at
		FROM results WHERE session_id = ? ORDER BY identity`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e               Entry
			status, outcome string
			updated         int64
		)
		if err := rows.Scan(&e.SessionID, &e.Identity, &e.ResultID, &e.Name, &e.GroupKey,
			&status, &outcome, &e.DurationMillis, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Status = runner.ParseStatus(status)
		e.Outcome = runner.ParseOutcome(outcome)
		e.UpdatedAt = time.Unix(0, updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// ResultIDs maps each identity of a session to its remote result id.
func (j *Journal) ResultIDs(ctx context.Context, sessionID string) (map[string]string, error) {
	entries, err := j.Entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(entries))
	for _, e := range entries {
		ids[e.Identity] = e.ResultID
	}
	return ids, nil
}

// Failed lists the identities of a session whose outcome failed.
func (j *Journal) Failed(ctx context.Context, sessionID string) ([]string, error) {
	entries, err := j.Entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var failed []string
	for _, e := range entries {
		if e.Outcome.Failed() {
			failed = append(failed, e.Identity)
		}
	}
	return failed, nil
}

// Prune deletes all but the newest keep sessions.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	ctx, cancel := j.context(ctx)
	defer cancel()

	res, err := j.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY created_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return res.RowsAffected()
}
