package finance

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"finance-tower/internal/audit"
	"finance-tower/internal/forecast"
	"finance-tower/internal/ledger"
	"finance-tower/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

// Overview reports the budget with every aggregate derived from the ledger.
func (s *Service) Overview(ctx context.Context, projectID string) (Overview, error) {
	if projectID == "" {
		return Overview{}, validationf("project_id is required")
	}

	b, err := s.store.GetBudget(ctx, projectID)
	if errors.Is(err, ledger.ErrNotFound) {
		return Overview{}, ErrNotConfigured
	}
	if err != nil {
		return Overview{}, classify("overview", err)
	}

	used, err := s.store.SumDisbursements(ctx, projectID, ledger.CommittedStatuses...)
	if err != nil {
		return Overview{}, classify("overview", err)
	}
	pending, err := s.store.PendingRequestTotals(ctx, projectID)
	if err != nil {
		return Overview{}, classify("overview", err)
	}

	now := s.now()
	paid, err := s.store.ListPaidSince(ctx, projectID, forecast.BurnWindowStart(now))
	if err != nil {
		return Overview{}, classify("overview", err)
	}
	burn := forecast.MonthlyBurn(paid, now)
	remaining := b.TotalBudget.Sub(used)

	var pct int64
	if b.TotalBudget.IsPositive() {
		pct = used.Mul(hundred).Div(b.TotalBudget).Round(0).IntPart()
	}

	return Overview{
		ProjectID:       projectID,
		TotalBudget:     b.TotalBudget,
		Currency:        b.Currency,
		BudgetUsed:      used,
		Remaining:       remaining,
		UsedPercent:     pct,
		MonthlyBurn:     burn,
		RunwayMonths:    forecast.Runway(remaining, burn),
		PendingRequests: pending,
		UpdatedBy:       b.UpdatedBy,
		UpdatedAt:       b.UpdatedAt,
	}, nil
}

// AdjustBudget sets the project's total. The first adjustment creates the
// budget in the default currency; later ones keep whatever currency is stored.
func (s *Service) AdjustBudget(ctx context.Context, projectID string, newTotal decimal.Decimal, reason, actorID string) (ledger.ProjectBudget, error) {
	if err := requireIDs(projectID, actorID); err != nil {
		return ledger.ProjectBudget{}, err
	}
	if err := checkAmount("total_budget", newTotal, true); err != nil {
		return ledger.ProjectBudget{}, err
	}

	now := s.now()
	var out ledger.ProjectBudget
	err := s.store.WithTx(ctx, func(ctx context.Context, q *ledger.Queries) error {
		if err := q.UpsertBudget(ctx, ledger.ProjectBudget{
			ProjectID:   projectID,
			TotalBudget: newTotal,
			Currency:    s.currency,
			UpdatedBy:   actorID,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
		b, err := q.GetBudget(ctx, projectID)
		if err != nil {
			return err
		}
		out = b
		return s.record(ctx, q, audit.Entry{
			ProjectID: projectID,
			ActorID:   actorID,
			Action:    audit.ActionBudgetAdjusted,
			Amount:    newTotal,
			Note:      reason,
			RefID:     projectID,
		})
	})
	if err != nil {
		return ledger.ProjectBudget{}, classify("adjust budget", err)
	}

	logger.From(ctx).Info("budget adjusted", "project_id", projectID, "total_budget", newTotal.String(), "actor_id", actorID)
	return out, nil
}
