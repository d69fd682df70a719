// Package storage persists the powerwatch event journal.
//
// Every periodic firing and every observed power/visibility transition is
// recorded as one journal row, so the host's behavior across a full
// suspend/resume cycle can be inspected after the fact.
package storage

import (
	"log"
	"sync"
	"time"

	// SQLite driver - imported for side effects (registers the driver).
	// Using modernc.org/sqlite which is a pure-Go implementation that
	// doesn't require CGO, making cross-compilation and testing easier.
	"database/sql"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	hostErrors "github.com/powerwatch/host/internal/errors"
)

// Event kinds recorded in the journal.
const (
	KindFiring     = "firing"     // a periodic activity fired
	KindPower      = "power"      // a power-state transition was observed
	KindVisibility = "visibility" // a visibility transition was observed
)

// Event is one journal row.
type Event struct {
	// ID is a generated unique identifier.
	ID string `json:"id"`
	// Kind is one of KindFiring, KindPower, KindVisibility.
	Kind string `json:"kind"`
	// Source identifies who produced the event (activity name,
	// observer name).
	Source string `json:"source"`
	// Seconds is the wall-clock time of the event in whole seconds.
	Seconds int64 `json:"seconds"`
	// Detail is an optional kind-specific string (e.g. "suspend").
	Detail string `json:"detail,omitempty"`
	// CreatedAt is the full-resolution record time, RFC 3339.
	CreatedAt string `json:"created_at"`
}

// Journal stores events in SQLite. It creates the database and tables on
// first use and supports concurrent access through internal locking.
type Journal struct {
	db *sql.DB      // Database connection handle.
	mu sync.RWMutex // Guards all database operations for thread safety.
}

// Open opens or creates a journal database at the given path.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(path string) (*Journal, error) {
	log.Printf("storage: opening journal at %s", path)

	// busy_timeout handles concurrent access from the CLI and the
	// running host.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, hostErrors.Wrap(hostErrors.CodeJournalOpenFailed, "open journal database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, hostErrors.Wrap(hostErrors.CodeJournalOpenFailed, "ping journal database", err)
	}

	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, hostErrors.Wrap(hostErrors.CodeJournalOpenFailed, "init journal schema", err)
	}

	log.Printf("storage: journal ready (schema version %d)", currentSchemaVersion)
	return j, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	log.Printf("storage: closing journal")
	return j.db.Close()
}

// Record appends one event and returns it with its generated ID.
func (j *Journal) Record(kind, source string, at time.Time, detail string) (Event, error) {
	ev := Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		Seconds:   at.Unix(),
		Detail:    detail,
		CreatedAt: at.UTC().Format(time.RFC3339Nano),
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO events (id, kind, source, seconds, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.Source, ev.Seconds, ev.Detail, ev.CreatedAt,
	)
	if err != nil {
		return Event{}, hostErrors.Wrap(hostErrors.CodeJournalWriteFailed, "insert event", err)
	}
	return ev, nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.Query(
		`SELECT id, kind, source, seconds, detail, created_at
		 FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, hostErrors.Wrap(hostErrors.CodeJournalQueryFailed, "query recent events", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Source, &ev.Seconds, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, hostErrors.Wrap(hostErrors.CodeJournalQueryFailed, "scan event", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, hostErrors.Wrap(hostErrors.CodeJournalQueryFailed, "iterate events", err)
	}
	return out, nil
}

// CountBySource returns the number of recorded events per source for the
// given kind. Used by the status surface.
func (j *Journal) CountBySource(kind string) (map[string]int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.Query(`SELECT source, COUNT(*) FROM events WHERE kind = ? GROUP BY source`, kind)
	if err != nil {
		return nil, hostErrors.Wrap(hostErrors.CodeJournalQueryFailed, "count events", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, hostErrors.Wrap(hostErrors.CodeJournalQueryFailed, "scan count", err)
		}
		out[source] = n
	}
	if err := rows.Err(); err != nil {
		return nil, hostErrors.Wrap(hostErrors.CodeJournalQueryFailed, "iterate counts", err)
	}
	return out, nil
}
