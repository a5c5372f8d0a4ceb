// Package db keeps the append-only manifest journal in Postgres.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Entry is one manifest change. The journal is append-only and is never read
// back by the simulation.
type Entry struct {
	TicketID    string
	BusName     string
	Kind        string // issued|removed|reconciled
	Boarding    int
	Destination int
	Passengers  int
	StopIndex   int
	RecordedAt  time.Time
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Journal struct {
	db      execer
	closer  io.Closer
	timeout time.Duration
}

// OpenJournal connects through the pgx driver, waits up to 5s for the server
// to answer and creates the journal table if needed.
func OpenJournal(ctx context.Context, dsn string) (*Journal, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// one writer plus a spare; the journal is never read back
	conn.SetMaxOpenConns(2)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}

	j := newJournal(conn)
	j.closer = conn
	if err := j.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

func newJournal(db execer) *Journal {
	return &Journal{db: db, timeout: 3 * time.Second}
}

const schema = `
CREATE TABLE IF NOT EXISTS manifest_events (
  id          BIGSERIAL PRIMARY KEY,
  ticket_id   TEXT        NOT NULL,
  bus_name    TEXT        NOT NULL,
  kind        TEXT        NOT NULL,
  boarding    INTEGER     NOT NULL,
  destination INTEGER     NOT NULL,
  passengers  INTEGER     NOT NULL,
  stop_index  INTEGER     NOT NULL,
  recorded_at TIMESTAMPTZ NOT NULL
)`

const insertEntry = `
INSERT INTO manifest_events (ticket_id, bus_name, kind, boarding, destination, passengers, stop_index, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create manifest_events: %w", err)
	}
	return nil
}

func (j *Journal) Record(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, insertEntry,
		e.TicketID, e.BusName, e.Kind, e.Boarding, e.Destination, e.Passengers, e.StopIndex, e.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert manifest event %s/%s: %w", e.Kind, e.TicketID, err)
	}
	return nil
}
