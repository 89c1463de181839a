package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect selects the DDL flavour. Queries are shared: both engines accept
// $N placeholders, ON CONFLICT upserts and RETURNING.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS project_budgets (
    project_id      TEXT PRIMARY KEY,
    total_budget    NUMERIC(14,2) NOT NULL CHECK (total_budget >= 0),
    currency        TEXT NOT NULL,
    updated_by      TEXT NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS fund_requests (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL,
    requester_id    TEXT NOT NULL,
    amount          NUMERIC(14,2) NOT NULL CHECK (amount > 0),
    category        TEXT NOT NULL,
    justification   TEXT NOT NULL CHECK (justification <> ''),
    status          TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
    approver_id     TEXT,
    approved_amount NUMERIC(14,2),
    reviewer_note   TEXT,
    created_at      TIMESTAMPTZ NOT NULL,
    reviewed_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS disbursements (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL,
    fund_request_id TEXT REFERENCES fund_requests(id),
    recipient_id    TEXT NOT NULL,
    amount          NUMERIC(14,2) NOT NULL CHECK (amount > 0),
    category        TEXT NOT NULL,
    status          TEXT NOT NULL CHECK (status IN ('scheduled', 'approved', 'paid', 'cancelled')),
    description     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL,
    paid_at         TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS audit_log (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL,
    actor_id        TEXT NOT NULL,
    action          TEXT NOT NULL,
    amount          NUMERIC(14,2) NOT NULL DEFAULT 0,
    note            TEXT NOT NULL DEFAULT '',
    ref_id          TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fund_requests_project ON fund_requests(project_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_disbursements_project ON disbursements(project_id, status);
CREATE INDEX IF NOT EXISTS idx_disbursements_paid ON disbursements(project_id, paid_at) WHERE status = 'paid';
CREATE INDEX IF NOT EXISTS idx_audit_log_project ON audit_log(project_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_log_ref ON audit_log(ref_id);

CREATE OR REPLACE FUNCTION audit_log_append_only() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'audit_log is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS audit_log_no_mutation ON audit_log;
CREATE TRIGGER audit_log_no_mutation
    BEFORE UPDATE OR DELETE ON audit_log
    FOR EACH ROW EXECUTE FUNCTION audit_log_append_only();
`

// SQLite keeps TIMESTAMP as the declared type so the driver parses the
// stored text back into time.Time. Amounts are TEXT holding the exact decimal
// string; totals over them are summed in Go.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS project_budgets (
    project_id      TEXT PRIMARY KEY,
    total_budget    TEXT NOT NULL CHECK (CAST(total_budget AS NUMERIC) >= 0),
    currency        TEXT NOT NULL,
    updated_by      TEXT NOT NULL,
    updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS fund_requests (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL,
    requester_id    TEXT NOT NULL,
    amount          TEXT NOT NULL CHECK (CAST(amount AS NUMERIC) > 0),
    category        TEXT NOT NULL,
    justification   TEXT NOT NULL CHECK (justification <> ''),
    status          TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
    approver_id     TEXT,
    approved_amount TEXT,
    reviewer_note   TEXT,
    created_at      TIMESTAMP NOT NULL,
    reviewed_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS disbursements (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL,
    fund_request_id TEXT REFERENCES fund_requests(id),
    recipient_id    TEXT NOT NULL,
    amount          TEXT NOT NULL CHECK (CAST(amount AS NUMERIC) > 0),
    category        TEXT NOT NULL,
    status          TEXT NOT NULL CHECK (status IN ('scheduled', 'approved', 'paid', 'cancelled')),
    description     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMP NOT NULL,
    paid_at         TIMESTAMP
);

CREATE TABLE IF NOT EXISTS audit_log (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL,
    actor_id        TEXT NOT NULL,
    action          TEXT NOT NULL,
    amount          TEXT NOT NULL DEFAULT '0',
    note            TEXT NOT NULL DEFAULT '',
    ref_id          TEXT NOT NULL,
    created_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fund_requests_project ON fund_requests(project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_disbursements_project ON disbursements(project_id, status);
CREATE INDEX IF NOT EXISTS idx_audit_log_project ON audit_log(project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_ref ON audit_log(ref_id);

CREATE TRIGGER IF NOT EXISTS audit_log_no_update BEFORE UPDATE ON audit_log
BEGIN
    SELECT RAISE(ABORT, 'audit_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_log_no_delete BEFORE DELETE ON audit_log
BEGIN
    SELECT RAISE(ABORT, 'audit_log is append-only');
END;
`

// Migrate creates the ledger tables if they do not exist. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var ddl string
	switch dialect {
	case DialectPostgres:
		ddl = schemaPostgres
	case DialectSQLite:
		ddl = schemaSQLite
	default:
		return fmt.Errorf("ledger: unknown dialect %q", dialect)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ledger: migrate %s: %w", dialect, err)
	}
	return nil
}
