// Package profile records call-shape statistics in a SQLite database.
//
// A Recorder implements vm.ShapeObserver: each sample is aggregated in
// memory and persisted on Flush, so observing a shape costs a map update
// rather than a write. Rows are keyed by recording session, letting several
// runs share one database.
package profile

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/macaw/vm"
)

var log = commonlog.GetLogger("macaw.profile")

// ErrClosed indicates the recorder's database has been closed.
var ErrClosed = errors.New("profile: recorder is closed")

type shapeKey struct {
	positionals int
	named       int
	kinds       string
}

// Shape is one aggregated call shape.
type Shape struct {
	Positionals int
	Named       int
	Kinds       string
	Calls       int64
}

// Recorder aggregates signature shapes and persists them to SQLite.
type Recorder struct {
	mu      sync.Mutex
	db      *sql.DB
	dbPath  string
	session string
	pending map[shapeKey]int64
	closed  bool
}

// Open creates or opens the shape database at dbPath and starts a new
// recording session.
func Open(dbPath string) (*Recorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS shapes (
		session_id TEXT NOT NULL,
		positionals INTEGER NOT NULL,
		named INTEGER NOT NULL,
		kinds TEXT NOT NULL,
		calls INTEGER NOT NULL,
		PRIMARY KEY (session_id, positionals, named, kinds)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating shapes table: %w", err)
	}

	session := "prof_" + uuid.New().String()
	startedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.Exec("INSERT INTO sessions (id, started_at) VALUES (?, ?)", session, startedAt); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering session: %w", err)
	}

	return &Recorder{
		db:      db,
		dbPath:  dbPath,
		session: session,
		pending: make(map[shapeKey]int64),
	}, nil
}

// Session returns the identifier of this recording session.
func (r *Recorder) Session() string {
	return r.session
}

// ObserveShape implements vm.ShapeObserver.
func (r *Recorder) ObserveShape(s vm.ShapeSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.pending[shapeKey{s.Positionals, s.Named, s.Kinds}]++
}

// Flush writes the pending counts to the database. On failure the counts
// are kept for the next attempt.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	pending := r.pending
	r.pending = make(map[shapeKey]int64)
	r.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := r.writeShapes(pending); err != nil {
		r.mu.Lock()
		for k, n := range pending {
			r.pending[k] += n
		}
		r.mu.Unlock()
		return err
	}
	log.Debugf("flushed %d shapes for session %s", len(pending), r.session)
	return nil
}

func (r *Recorder) writeShapes(pending map[shapeKey]int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting flush transaction: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO shapes (session_id, positionals, named, kinds, calls)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id, positionals, named, kinds)
		DO UPDATE SET calls = calls + excluded.calls`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for k, n := range pending {
		if _, err := stmt.Exec(r.session, k.positionals, k.named, k.kinds, n); err != nil {
			tx.Rollback()
			return fmt.Errorf("upserting shape: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing flush: %w", err)
	}
	return nil
}

// TopShapes returns the n most frequent shapes aggregated across every
// session in the database. Pending counts are not included; call Flush
// first for an up-to-date view.
func (r *Recorder) TopShapes(n int) ([]Shape, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.mu.Unlock()

	rows, err := r.db.Query(`SELECT positionals, named, kinds, SUM(calls) AS total
		FROM shapes
		GROUP BY positionals, named, kinds
		ORDER BY total DESC, positionals, named, kinds
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying shapes: %w", err)
	}
	defer rows.Close()

	var shapes []Shape
	for rows.Next() {
		var s Shape
		if err := rows.Scan(&s.Positionals, &s.Named, &s.Kinds, &s.Calls); err != nil {
			return nil, fmt.Errorf("scanning shape row: %w", err)
		}
		shapes = append(shapes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading shape rows: %w", err)
	}
	return shapes, nil
}

// Sessions returns the identifiers of every recorded session, oldest first.
func (r *Recorder) Sessions() ([]string, error) {
	rows, err := r.db.Query("SELECT id FROM sessions ORDER BY started_at, id")
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session rows: %w", err)
	}
	return ids, nil
}

// ReadTopShapes opens the database at dbPath just long enough to read the
// n most frequent shapes across all sessions. Unlike Open it starts no
// recording session, so inspection tools leave the database unchanged.
func ReadTopShapes(dbPath string, n int) ([]Shape, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT positionals, named, kinds, SUM(calls) AS total
		FROM shapes
		GROUP BY positionals, named, kinds
		ORDER BY total DESC, positionals, named, kinds
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying shapes: %w", err)
	}
	defer rows.Close()

	var shapes []Shape
	for rows.Next() {
		var s Shape
		if err := rows.Scan(&s.Positionals, &s.Named, &s.Kinds, &s.Calls); err != nil {
			return nil, fmt.Errorf("scanning shape row: %w", err)
		}
		shapes = append(shapes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading shape rows: %w", err)
	}
	return shapes, nil
}

// Close flushes pending counts and closes the database.
func (r *Recorder) Close() error {
	flushErr := r.Flush()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return flushErr
}
