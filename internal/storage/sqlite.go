// internal/storage/sqlite.go
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no entry, weight sample, or memory matches the
// given id or date.
var ErrNotFound = errors.New("not found")

// ErrNegativeMacros is returned when an entry carries a negative calorie or
// macro value.
var ErrNegativeMacros = errors.New("calories and macros must be non-negative")

// ErrEmptyPatch is returned when an edit specifies no fields to change.
var ErrEmptyPatch = errors.New("nothing to update")

// Ledger is the local authoritative store of entries, goals, weight samples,
// and memory facts, backed by SQLite.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger

	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex

	now func() time.Time
}

// NewLedger opens (or creates) the ledger database at the given path. Parent
// directories are created if needed.
func NewLedger(path string) (*Ledger, error) {
	logger := slog.Default().With("component", "ledger")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &Ledger{
		db:        db,
		logger:    logger,
		userLocks: make(map[string]*sync.Mutex),
		now:       time.Now,
	}

	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logger.Info("ledger initialized", "path", path)
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'snack',
		description TEXT NOT NULL,
		calories REAL NOT NULL DEFAULT 0 CHECK (calories >= 0),
		protein REAL NOT NULL DEFAULT 0 CHECK (protein >= 0),
		fat REAL NOT NULL DEFAULT 0 CHECK (fat >= 0),
		carbs REAL NOT NULL DEFAULT 0 CHECK (carbs >= 0),
		origin TEXT NOT NULL DEFAULT 'text',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_user_date ON entries(user_id, date);

	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		goal_type TEXT NOT NULL DEFAULT 'maintenance',
		daily_calories INTEGER NOT NULL DEFAULT 2000,
		daily_protein INTEGER NOT NULL DEFAULT 150,
		daily_fat INTEGER NOT NULL DEFAULT 70,
		daily_carbs INTEGER NOT NULL DEFAULT 200,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS weight_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		weight REAL NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(user_id, date)
	);

	CREATE TABLE IF NOT EXISTS memory_bank (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(user_id, content)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_user ON memory_bank(user_id);
	`

	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SetClock overrides the time source used for dates and timestamps. Tests
// use it to pin writes to known days.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// LockUser serializes read-check-then-write sequences for a single user, so a
// duplicate check and the insert that follows it cannot interleave with a
// concurrent write for the same user. The returned func releases the lock.
func (l *Ledger) LockUser(userID string) func() {
	l.lockMu.Lock()
	m, ok := l.userLocks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.userLocks[userID] = m
	}
	l.lockMu.Unlock()

	m.Lock()
	return m.Unlock
}
