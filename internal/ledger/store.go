package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"finance-tower/pkg/utils"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the ledger's read and write primitives over a DBTX.
// Bound to the pool it serves snapshot reads; bound to a transaction it is
// the only way mutations reach the ledger tables.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries { return &Queries{db: db} }

// Store is the durable home of budgets, fund requests, disbursements and
// the audit log.
//
// Invariants:
// - every multi-row mutation runs inside WithTx; nothing partial is visible
// - status transitions are conditional updates, never read-then-write
// - audit_log has an insert path only
type Store struct {
	*Queries
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{Queries: NewQueries(db), db: db}
}

// WithTx runs fn in one transaction. fn's error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q *Queries) error) error {
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, NewQueries(tx))
	})
}

func (s *Store) DB() *sql.DB { return s.db }

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", start+i)
	}
	return b.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
