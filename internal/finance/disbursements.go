package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finance-tower/internal/audit"
	"finance-tower/internal/ledger"
	"finance-tower/pkg/logger"
)

// CreateDisbursement records a manual disbursement in scheduled state.
func (s *Service) CreateDisbursement(ctx context.Context, projectID, actorID, recipientID string, amount decimal.Decimal, category, description string) (ledger.Disbursement, error) {
	if err := requireIDs(projectID, actorID); err != nil {
		return ledger.Disbursement{}, err
	}
	if strings.TrimSpace(recipientID) == "" {
		return ledger.Disbursement{}, validationf("recipient_id is required")
	}
	if err := checkAmount("amount", amount, false); err != nil {
		return ledger.Disbursement{}, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}

	d := ledger.Disbursement{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		RecipientID: recipientID,
		Amount:      amount,
		Category:    category,
		Status:      ledger.DisbursementStatusScheduled,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now(),
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, q *ledger.Queries) error {
		if err := q.InsertDisbursement(ctx, d); err != nil {
			return err
		}
		return s.record(ctx, q, audit.Entry{
			ProjectID: projectID,
			ActorID:   actorID,
			Action:    audit.ActionDisbursementScheduled,
			Amount:    amount,
			Note:      fmt.Sprintf("%s disbursement scheduled for %s", category, recipientID),
			RefID:     d.ID,
		})
	})
	if err != nil {
		return ledger.Disbursement{}, classify("create disbursement", err)
	}

	logger.From(ctx).Info("disbursement scheduled", "project_id", projectID, "disbursement_id", d.ID, "amount", amount.String())
	return d, nil
}

// UpdateDisbursementStatus moves one disbursement along
// scheduled -> approved -> paid, or cancels it before payment.
func (s *Service) UpdateDisbursementStatus(ctx context.Context, projectID, disbursementID, newStatus, actorID string) (ledger.Disbursement, error) {
	if err := requireIDs(projectID, actorID); err != nil {
		return ledger.Disbursement{}, err
	}
	to := ledger.DisbursementStatus(strings.ToLower(strings.TrimSpace(newStatus)))
	from := ledger.SourcesFor(to)
	if len(from) == 0 {
		return ledger.Disbursement{}, validationf("status must be one of approved, paid, cancelled")
	}

	now := s.now()
	var out ledger.Disbursement
	err := s.store.WithTx(ctx, func(ctx context.Context, q *ledger.Queries) error {
		if err := q.TransitionDisbursement(ctx, projectID, disbursementID, from, to, now); err != nil {
			return resolveMiss(err, "disbursement", disbursementID, func() error {
				_, err := q.GetDisbursement(ctx, projectID, disbursementID)
				return err
			})
		}
		d, err := q.GetDisbursement(ctx, projectID, disbursementID)
		if err != nil {
			return err
		}
		out = d
		return s.record(ctx, q, audit.Entry{
			ProjectID: projectID,
			ActorID:   actorID,
			Action:    audit.DisbursementAction(string(to)),
			Amount:    d.Amount,
			Note:      fmt.Sprintf("%s disbursement to %s marked %s", d.Category, d.RecipientID, to),
			RefID:     d.ID,
		})
	})
	if err != nil {
		return ledger.Disbursement{}, classify("update disbursement", err)
	}

	logger.From(ctx).Info("disbursement status changed", "project_id", projectID, "disbursement_id", disbursementID, "status", string(to))
	return out, nil
}

// ApproveAllPending pays every approved or scheduled disbursement of the
// project in one transaction, all with the same paid_at. A run that finds
// nothing to pay writes no audit entry.
func (s *Service) ApproveAllPending(ctx context.Context, projectID, actorID string) (ledger.Payout, error) {
	if err := requireIDs(projectID, actorID); err != nil {
		return ledger.Payout{}, err
	}

	if s.guard != nil {
		release, ok, err := s.guard.Acquire(ctx, projectID)
		if err != nil {
			return ledger.Payout{}, classify("approve all pending", err)
		}
		if !ok {
			return ledger.Payout{}, fmt.Errorf("%w: a payout for project %s is already running", ErrConflict, projectID)
		}
		defer release()
	}

	now := s.now()
	var out ledger.Payout
	err := s.store.WithTx(ctx, func(ctx context.Context, q *ledger.Queries) error {
		p, err := q.PayAllPending(ctx, projectID, now)
		if err != nil {
			return err
		}
		out = p
		if p.Count == 0 {
			return nil
		}
		return s.record(ctx, q, audit.Entry{
			ProjectID: projectID,
			ActorID:   actorID,
			Action:    audit.ActionBatchPayrollApproved,
			Amount:    decimal.Zero,
			Note:      fmt.Sprintf("paid %d disbursements totalling %s", p.Count, p.Total.StringFixed(2)),
			RefID:     projectID,
		})
	})
	if err != nil {
		return ledger.Payout{}, classify("approve all pending", err)
	}

	logger.From(ctx).Info("batch payout", "project_id", projectID, "paid_count", out.Count, "total", out.Total.String())
	return out, nil
}

func (s *Service) ListDisbursements(ctx context.Context, projectID string) ([]DisbursementView, error) {
	ds, err := s.store.ListDisbursements(ctx, projectID)
	if err != nil {
		return nil, classify("list disbursements", err)
	}

	ids := make([]string, 0, len(ds))
	for _, d := range ds {
		ids = append(ids, d.RecipientID)
	}
	names := s.names(ctx, ids...)

	out := make([]DisbursementView, 0, len(ds))
	for _, d := range ds {
		out = append(out, DisbursementView{Disbursement: d, RecipientName: names[d.RecipientID]})
	}
	return out, nil
}

func (s *Service) GetDisbursement(ctx context.Context, projectID, disbursementID string) (DisbursementView, error) {
	d, err := s.store.GetDisbursement(ctx, projectID, disbursementID)
	if errors.Is(err, ledger.ErrNotFound) {
		return DisbursementView{}, fmt.Errorf("%w: disbursement %s", ErrNotFound, disbursementID)
	}
	if err != nil {
		return DisbursementView{}, classify("get disbursement", err)
	}
	names := s.names(ctx, d.RecipientID)
	return DisbursementView{Disbursement: d, RecipientName: names[d.RecipientID]}, nil
}
