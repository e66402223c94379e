// Package history persists assistant session metadata in a per-profile
// SQLite database so sessions can be listed and resumed across restarts.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-runewidth"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for unknown session ids.
var ErrNotFound = errors.New("session not found")

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	provider      TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	work_dir      TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	last_active   TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_turns   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_provider ON sessions(provider);
CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active);
`

// maxTitleWidth caps session titles at a display width that fits list views.
const maxTitleWidth = 80

// Entry is one recorded assistant session.
type Entry struct {
	SessionID    string    `json:"sessionId"`
	Provider     string    `json:"provider"`
	Title        string    `json:"title"`
	WorkDir      string    `json:"workDir,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActive   time.Time `json:"lastActive"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	TotalTurns   int       `json:"totalTurns"`
}

// TotalTokens returns the sum of input and output tokens.
func (e *Entry) TotalTokens() int {
	return e.InputTokens + e.OutputTokens
}

// Store wraps the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns the history database location under a profile
// directory.
func DefaultPath(profileDir string) string {
	return filepath.Join(profileDir, "history.db")
}

// Open opens (or creates) the history database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	if err := ensureVersion(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func ensureVersion(db *sql.DB) error {
	var ver int
	err := db.QueryRow("SELECT version FROM schema_meta LIMIT 1").Scan(&ver)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}
	if ver != schemaVersion {
		return fmt.Errorf("unsupported history schema version %d", ver)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a session or, for an existing id, updates its provider,
// title, workDir and lastActive. createdAt and token counters survive the
// update.
func (s *Store) Record(e *Entry) error {
	if e.SessionID == "" {
		return fmt.Errorf("record session: empty session id")
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	lastActive := e.LastActive
	if lastActive.IsZero() {
		lastActive = createdAt
	}

	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, provider, title, work_dir, created_at, last_active, input_tokens, output_tokens, total_turns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			provider = excluded.provider,
			title = excluded.title,
			work_dir = excluded.work_dir,
			last_active = excluded.last_active
	`, e.SessionID, e.Provider, TruncateTitle(e.Title), e.WorkDir,
		formatTime(createdAt), formatTime(lastActive),
		e.InputTokens, e.OutputTokens, e.TotalTurns)
	if err != nil {
		return fmt.Errorf("record session %s: %w", e.SessionID, err)
	}
	return nil
}

// Touch updates a session's lastActive to now.
func (s *Store) Touch(sessionID string) error {
	res, err := s.db.Exec("UPDATE sessions SET last_active = ? WHERE session_id = ?",
		formatTime(s.now()), sessionID)
	if err != nil {
		return fmt.Errorf("touch session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the entry for a session id, or ErrNotFound.
func (s *Store) Get(sessionID string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT session_id, provider, title, work_dir, created_at, last_active, input_tokens, output_tokens, total_turns
		FROM sessions WHERE session_id = ?
	`, sessionID)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return e, nil
}

// List returns entries ordered by lastActive descending. An empty provider
// matches all providers; limit <= 0 means no limit.
func (s *Store) List(provider string, limit int) ([]*Entry, error) {
	query := `
		SELECT session_id, provider, title, work_dir, created_at, last_active, input_tokens, output_tokens, total_turns
		FROM sessions
	`
	var args []any
	if provider != "" {
		query += " WHERE provider = ?"
		args = append(args, provider)
	}
	query += " ORDER BY last_active DESC, session_id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (s *Store) Delete(sessionID string) error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// AddUsage accumulates token and turn counters onto a session and touches
// lastActive.
func (s *Store) AddUsage(sessionID string, inputTokens, outputTokens, turns int) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET
			input_tokens = input_tokens + ?,
			output_tokens = output_tokens + ?,
			total_turns = total_turns + ?,
			last_active = ?
		WHERE session_id = ?
	`, inputTokens, outputTokens, turns, formatTime(s.now()), sessionID)
	if err != nil {
		return fmt.Errorf("add usage for %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Has reports whether a session id is already recorded.
func (s *Store) Has(sessionID string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM sessions WHERE session_id = ?", sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session %s: %w", sessionID, err)
	}
	return true, nil
}

// TruncateTitle trims a title to the display width list views render,
// counting wide runes as two columns.
func TruncateTitle(title string) string {
	if runewidth.StringWidth(title) <= maxTitleWidth {
		return title
	}
	return runewidth.Truncate(title, maxTitleWidth, "...")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var createdAt, lastActive string
	if err := row.Scan(&e.SessionID, &e.Provider, &e.Title, &e.WorkDir,
		&createdAt, &lastActive, &e.InputTokens, &e.OutputTokens, &e.TotalTurns); err != nil {
		return nil, err
	}
	e.CreatedAt = parseTime(createdAt)
	e.LastActive = parseTime(lastActive)
	return &e, nil
}

// timeLayout keeps a fixed-width fraction so TEXT comparison in ORDER BY
// matches time order. RFC3339Nano trims trailing zeros and loses that.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
