package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const fundRequestColumns = `id, project_id, requester_id, amount, category, justification, status,
       approver_id, approved_amount, reviewer_note, created_at, reviewed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFundRequest(row rowScanner) (FundRequest, error) {
	var (
		r          FundRequest
		approver   sql.NullString
		note       sql.NullString
		reviewedAt sql.NullTime
	)
	if err := row.Scan(
		&r.ID,
		&r.ProjectID,
		&r.RequesterID,
		&r.Amount,
		&r.Category,
		&r.Justification,
		&r.Status,
		&approver,
		&r.ApprovedAmount,
		&note,
		&r.CreatedAt,
		&reviewedAt,
	); err != nil {
		return FundRequest{}, err
	}
	r.ApproverID = approver.String
	r.ReviewerNote = note.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		r.ReviewedAt = &t
	}
	return r, nil
}

func (q *Queries) InsertFundRequest(ctx context.Context, r FundRequest) error {
	const stmt = `
INSERT INTO fund_requests (
  id, project_id, requester_id, amount, category, justification, status, created_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7, $8
)
`
	if _, err := q.db.ExecContext(ctx, stmt,
		r.ID,
		r.ProjectID,
		r.RequesterID,
		r.Amount,
		r.Category,
		r.Justification,
		string(r.Status),
		r.CreatedAt,
	); err != nil {
		return fmt.Errorf("ledger.InsertFundRequest: %w", err)
	}
	return nil
}

func (q *Queries) GetFundRequest(ctx context.Context, projectID, id string) (FundRequest, error) {
	stmt := `SELECT ` + fundRequestColumns + `
FROM fund_requests
WHERE id = $1 AND project_id = $2
`
	r, err := scanFundRequest(q.db.QueryRowContext(ctx, stmt, id, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FundRequest{}, ErrNotFound
		}
		return FundRequest{}, fmt.Errorf("ledger.GetFundRequest: %w", err)
	}
	return r, nil
}

// TransitionFundRequest moves a request from one status to another and
// writes the review fields, but only if the row is still in from. Zero
// matched rows yields ErrNoTransition; the caller decides whether that is
// a missing row or a lost race.
func (q *Queries) TransitionFundRequest(ctx context.Context, projectID, id string, from, to RequestStatus, rv Review) error {
	const stmt = `
UPDATE fund_requests
SET status = $1,
    approver_id = $2,
    approved_amount = $3,
    reviewer_note = $4,
    reviewed_at = $5
WHERE id = $6 AND project_id = $7 AND status = $8
`
	res, err := q.db.ExecContext(ctx, stmt,
		string(to),
		rv.ApproverID,
		rv.ApprovedAmount,
		nullString(rv.Note),
		rv.ReviewedAt,
		id,
		projectID,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("ledger.TransitionFundRequest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger.TransitionFundRequest: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoTransition
	}
	return nil
}

// ListFundRequests returns a project's requests newest first. An empty
// status lists every request.
func (q *Queries) ListFundRequests(ctx context.Context, projectID string, status RequestStatus) ([]FundRequest, error) {
	stmt := `SELECT ` + fundRequestColumns + `
FROM fund_requests
WHERE project_id = $1`
	args := []any{projectID}
	if status != "" {
		stmt += ` AND status = $2`
		args = append(args, string(status))
	}
	stmt += `
ORDER BY created_at DESC, id DESC`

	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger.ListFundRequests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]FundRequest, 0)
	for rows.Next() {
		r, err := scanFundRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger.ListFundRequests: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger.ListFundRequests: rows: %w", err)
	}
	return out, nil
}

func (q *Queries) PendingRequestTotals(ctx context.Context, projectID string) (PendingTotals, error) {
	const stmt = `
SELECT amount
FROM fund_requests
WHERE project_id = $1 AND status = $2
`
	rows, err := q.db.QueryContext(ctx, stmt, projectID, string(RequestStatusPending))
	if err != nil {
		return PendingTotals{}, fmt.Errorf("ledger.PendingRequestTotals: %w", err)
	}
	total, n, err := sumAmounts(rows)
	if err != nil {
		return PendingTotals{}, fmt.Errorf("ledger.PendingRequestTotals: %w", err)
	}
	return PendingTotals{Count: n, Total: total}, nil
}
