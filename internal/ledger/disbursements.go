package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const disbursementColumns = `id, project_id, fund_request_id, recipient_id, amount, category, status,
       description, created_at, paid_at`

func scanDisbursement(row rowScanner) (Disbursement, error) {
	var (
		d       Disbursement
		request sql.NullString
		paidAt  sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&d.ProjectID,
		&request,
		&d.RecipientID,
		&d.Amount,
		&d.Category,
		&d.Status,
		&d.Description,
		&d.CreatedAt,
		&paidAt,
	); err != nil {
		return Disbursement{}, err
	}
	if request.Valid {
		id := request.String
		d.FundRequestID = &id
	}
	if paidAt.Valid {
		t := paidAt.Time
		d.PaidAt = &t
	}
	return d, nil
}

func (q *Queries) InsertDisbursement(ctx context.Context, d Disbursement) error {
	const stmt = `
INSERT INTO disbursements (
  id, project_id, fund_request_id, recipient_id, amount, category, status, description, created_at, paid_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
`
	var request sql.NullString
	if d.FundRequestID != nil {
		request = sql.NullString{String: *d.FundRequestID, Valid: true}
	}
	var paidAt sql.NullTime
	if d.PaidAt != nil {
		paidAt = sql.NullTime{Time: *d.PaidAt, Valid: true}
	}
	if _, err := q.db.ExecContext(ctx, stmt,
		d.ID,
		d.ProjectID,
		request,
		d.RecipientID,
		d.Amount,
		d.Category,
		string(d.Status),
		d.Description,
		d.CreatedAt,
		paidAt,
	); err != nil {
		return fmt.Errorf("ledger.InsertDisbursement: %w", err)
	}
	return nil
}

func (q *Queries) GetDisbursement(ctx context.Context, projectID, id string) (Disbursement, error) {
	stmt := `SELECT ` + disbursementColumns + `
FROM disbursements
WHERE id = $1 AND project_id = $2
`
	d, err := scanDisbursement(q.db.QueryRowContext(ctx, stmt, id, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Disbursement{}, ErrNotFound
		}
		return Disbursement{}, fmt.Errorf("ledger.GetDisbursement: %w", err)
	}
	return d, nil
}

// TransitionDisbursement moves a disbursement to `to` if its current status
// is one of from. Moving to paid stamps paid_at; other targets leave it as
// is. Zero matched rows yields ErrNoTransition.
func (q *Queries) TransitionDisbursement(ctx context.Context, projectID, id string, from []DisbursementStatus, to DisbursementStatus, at time.Time) error {
	if len(from) == 0 {
		return ErrNoTransition
	}

	var (
		stmt string
		args []any
	)
	if to == DisbursementStatusPaid {
		stmt = `
UPDATE disbursements
SET status = $1, paid_at = $2
WHERE id = $3 AND project_id = $4 AND status IN (` + placeholders(5, len(from)) + `)
`
		args = []any{string(to), at, id, projectID}
	} else {
		stmt = `
UPDATE disbursements
SET status = $1
WHERE id = $2 AND project_id = $3 AND status IN (` + placeholders(4, len(from)) + `)
`
		args = []any{string(to), id, projectID}
	}
	for _, s := range from {
		args = append(args, string(s))
	}

	res, err := q.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("ledger.TransitionDisbursement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger.TransitionDisbursement: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoTransition
	}
	return nil
}

// PayAllPending sweeps every approved or scheduled disbursement of the
// project to paid with one shared paid_at, in a single statement.
func (q *Queries) PayAllPending(ctx context.Context, projectID string, paidAt time.Time) (Payout, error) {
	stmt := `
UPDATE disbursements
SET status = $1, paid_at = $2
WHERE project_id = $3 AND status IN (` + placeholders(4, len(PayableStatuses)) + `)
RETURNING amount
`
	args := []any{string(DisbursementStatusPaid), paidAt, projectID}
	for _, s := range PayableStatuses {
		args = append(args, string(s))
	}

	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return Payout{}, fmt.Errorf("ledger.PayAllPending: %w", err)
	}

	total, n, err := sumAmounts(rows)
	if err != nil {
		return Payout{}, fmt.Errorf("ledger.PayAllPending: %w", err)
	}
	return Payout{Count: n, Total: total, PaidAt: paidAt}, nil
}

func (q *Queries) ListDisbursements(ctx context.Context, projectID string) ([]Disbursement, error) {
	stmt := `SELECT ` + disbursementColumns + `
FROM disbursements
WHERE project_id = $1
ORDER BY created_at DESC, id DESC
`
	rows, err := q.db.QueryContext(ctx, stmt, projectID)
	if err != nil {
		return nil, fmt.Errorf("ledger.ListDisbursements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Disbursement, 0)
	for rows.Next() {
		d, err := scanDisbursement(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger.ListDisbursements: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger.ListDisbursements: rows: %w", err)
	}
	return out, nil
}
