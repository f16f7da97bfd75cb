package offlinequeue

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DefaultSQLTable is the table entries are inserted into when no table is
// configured.
const DefaultSQLTable = "pending_requests"

// SQLOption customizes a SQL queue.
type SQLOption func(*SQL)

// WithSQLTable inserts entries into the given table instead of
// DefaultSQLTable.
func WithSQLTable(table string) SQLOption {
	return func(q *SQL) {
		if table != "" {
			q.table = table
		}
	}
}

// SQL writes one row per entry, letting the database provide durability and
// the drainer use ordinary transactional reads. Expected schema (PostgreSQL
// dialect; adjust column types per database):
//
//	CREATE TABLE pending_requests (
//	    id          TEXT PRIMARY KEY,
//	    method      TEXT NOT NULL,
//	    url         TEXT NOT NULL,
//	    body        BYTEA,
//	    enqueued_at TIMESTAMPTZ NOT NULL
//	);
type SQL struct {
	db     *sqlx.DB
	table  string
	insert string
}

// NewSQL returns a queue writing to db. The handle is borrowed, not owned.
func NewSQL(db *sqlx.DB, opts ...SQLOption) *SQL {
	q := &SQL{db: db, table: DefaultSQLTable}
	for _, opt := range opts {
		opt(q)
	}
	q.insert = fmt.Sprintf(
		"INSERT INTO %s (id, method, url, body, enqueued_at) VALUES (:id, :method, :url, :body, :enqueued_at)",
		q.table,
	)
	return q
}

// Enqueue implements the offline queue contract.
func (q *SQL) Enqueue(ctx context.Context, method, url string, body []byte) error {
	if _, err := q.db.NamedExecContext(ctx, q.insert, newEntry(method, url, body)); err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}
	return nil
}
