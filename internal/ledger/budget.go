package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func (q *Queries) GetBudget(ctx context.Context, projectID string) (ProjectBudget, error) {
	const stmt = `
SELECT project_id, total_budget, currency, updated_by, updated_at
FROM project_budgets
WHERE project_id = $1
`
	var b ProjectBudget
	if err := q.db.QueryRowContext(ctx, stmt, projectID).Scan(
		&b.ProjectID,
		&b.TotalBudget,
		&b.Currency,
		&b.UpdatedBy,
		&b.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProjectBudget{}, ErrNotFound
		}
		return ProjectBudget{}, fmt.Errorf("ledger.GetBudget: %w", err)
	}
	return b, nil
}

// UpsertBudget inserts or replaces the project's total. Currency is written
// only when the row is created; an existing row keeps its currency.
func (q *Queries) UpsertBudget(ctx context.Context, b ProjectBudget) error {
	const stmt = `
INSERT INTO project_budgets (project_id, total_budget, currency, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (project_id)
DO UPDATE SET total_budget = EXCLUDED.total_budget,
              updated_by = EXCLUDED.updated_by,
              updated_at = EXCLUDED.updated_at
`
	if _, err := q.db.ExecContext(ctx, stmt,
		b.ProjectID,
		b.TotalBudget,
		b.Currency,
		b.UpdatedBy,
		b.UpdatedAt,
	); err != nil {
		return fmt.Errorf("ledger.UpsertBudget: %w", err)
	}
	return nil
}

// SumDisbursements totals disbursement amounts in the given states.
func (q *Queries) SumDisbursements(ctx context.Context, projectID string, statuses ...DisbursementStatus) (decimal.Decimal, error) {
	if len(statuses) == 0 {
		return decimal.Zero, nil
	}
	stmt := `
SELECT amount
FROM disbursements
WHERE project_id = $1 AND status IN (` + placeholders(2, len(statuses)) + `)
`
	args := make([]any, 0, len(statuses)+1)
	args = append(args, projectID)
	for _, s := range statuses {
		args = append(args, string(s))
	}

	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger.SumDisbursements: %w", err)
	}
	sum, _, err := sumAmounts(rows)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger.SumDisbursements: %w", err)
	}
	return sum, nil
}

// sumAmounts folds a single-column result of amounts with decimal arithmetic
// and closes rows.
func sumAmounts(rows *sql.Rows) (decimal.Decimal, int, error) {
	defer func() { _ = rows.Close() }()

	sum := decimal.Zero
	n := 0
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, 0, fmt.Errorf("scan: %w", err)
		}
		sum = sum.Add(amount)
		n++
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, 0, fmt.Errorf("rows: %w", err)
	}
	return sum, n, nil
}

// ListPaidSince returns paid disbursements with paid_at at or after since.
func (q *Queries) ListPaidSince(ctx context.Context, projectID string, since time.Time) ([]Payment, error) {
	const stmt = `
SELECT amount, paid_at
FROM disbursements
WHERE project_id = $1 AND status = $2 AND paid_at >= $3
ORDER BY paid_at ASC
`
	rows, err := q.db.QueryContext(ctx, stmt, projectID, string(DisbursementStatusPaid), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("ledger.ListPaidSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.Amount, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("ledger.ListPaidSince: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger.ListPaidSince: rows: %w", err)
	}
	return out, nil
}
