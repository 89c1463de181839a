package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"finance-tower/internal/audit"
)

const auditColumns = `id, project_id, actor_id, action, amount, note, ref_id, created_at`

// AppendAudit inserts one audit entry. audit_log has no update or delete path.
func (q *Queries) AppendAudit(ctx context.Context, e audit.Entry) error {
	const stmt = `
INSERT INTO audit_log (` + auditColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	if _, err := q.db.ExecContext(ctx, stmt,
		e.ID,
		e.ProjectID,
		e.ActorID,
		string(e.Action),
		e.Amount,
		e.Note,
		e.RefID,
		e.CreatedAt,
	); err != nil {
		return fmt.Errorf("ledger.AppendAudit: %w", err)
	}
	return nil
}

// ListAudit returns up to limit entries for the project, newest first.
func (q *Queries) ListAudit(ctx context.Context, projectID string, limit int) ([]audit.Entry, error) {
	const stmt = `
SELECT ` + auditColumns + `
FROM audit_log
WHERE project_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	rows, err := q.db.QueryContext(ctx, stmt, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger.ListAudit: %w", err)
	}
	return scanAuditEntries(rows, "ledger.ListAudit")
}

// ListAuditByRef returns every entry recorded against one reference.
func (q *Queries) ListAuditByRef(ctx context.Context, projectID, refID string) ([]audit.Entry, error) {
	const stmt = `
SELECT ` + auditColumns + `
FROM audit_log
WHERE project_id = $1 AND ref_id = $2
ORDER BY created_at DESC, id DESC
`
	rows, err := q.db.QueryContext(ctx, stmt, projectID, refID)
	if err != nil {
		return nil, fmt.Errorf("ledger.ListAuditByRef: %w", err)
	}
	return scanAuditEntries(rows, "ledger.ListAuditByRef")
}

func scanAuditEntries(rows *sql.Rows, caller string) ([]audit.Entry, error) {
	defer func() { _ = rows.Close() }()

	out := make([]audit.Entry, 0)
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(
			&e.ID,
			&e.ProjectID,
			&e.ActorID,
			&e.Action,
			&e.Amount,
			&e.Note,
			&e.RefID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}
	return out, nil
}
