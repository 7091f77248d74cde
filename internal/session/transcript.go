package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Transcript persists the full turn-by-turn conversation to SQLite for
// post-mortem debugging. It is write-mostly; the session never reads it
// back. Write failures must never stop a running game, so callers log and
// continue.
type Transcript struct {
	db        *sql.DB
	sessionID string
}

// OpenTranscript opens (creating if needed) the transcript database and
// registers a new session row.
func OpenTranscript(ctx context.Context, dbPath, gameFile string) (*Transcript, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	// modernc.org/sqlite takes pragmas in _pragma=name(value) form.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping transcript database: %w", err)
	}

	t := &Transcript{db: db, sessionID: uuid.NewString()}
	if err := t.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize transcript schema: %w", err)
	}

	query := `INSERT INTO sessions (session_id, game_file, started_at) VALUES (?, ?, ?)`
	if _, err := t.db.ExecContext(ctx, query, t.sessionID, gameFile, time.Now().Unix()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register session: %w", err)
	}

	return t, nil
}

func (t *Transcript) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		game_file  TEXT NOT NULL,
		started_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		turn       INTEGER NOT NULL,
		command    TEXT NOT NULL,
		response   TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, turn),
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	`

	_, err := t.db.ExecContext(ctx, schema)
	return err
}

// SessionID returns the identifier of the session this transcript records.
func (t *Transcript) SessionID() string { return t.sessionID }

// RecordTurn appends one command/response pair.
func (t *Transcript) RecordTurn(ctx context.Context, turn int, command, response string) error {
	query := `INSERT INTO turns (session_id, turn, command, response, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := t.db.ExecContext(ctx, query, t.sessionID, turn, command, response, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to record turn %d: %w", turn, err)
	}
	return nil
}

// TurnCount reports how many turns this session has recorded.
func (t *Transcript) TurnCount(ctx context.Context) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM turns WHERE session_id = ?`
	if err := t.db.QueryRowContext(ctx, query, t.sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (t *Transcript) Close() error {
	return t.db.Close()
}
