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

func (s *Service) CreateRequest(ctx context.Context, projectID, requesterID string, amount decimal.Decimal, category, justification string) (ledger.FundRequest, error) {
	if err := requireIDs(projectID, requesterID); err != nil {
		return ledger.FundRequest{}, err
	}
	if err := checkAmount("amount", amount, false); err != nil {
		return ledger.FundRequest{}, err
	}
	justification = strings.TrimSpace(justification)
	if justification == "" {
		return ledger.FundRequest{}, validationf("justification is required")
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}

	r := ledger.FundRequest{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		RequesterID:   requesterID,
		Amount:        amount,
		Category:      category,
		Justification: justification,
		Status:        ledger.RequestStatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.store.InsertFundRequest(ctx, r); err != nil {
		return ledger.FundRequest{}, classify("create request", err)
	}

	logger.From(ctx).Info("fund request created", "project_id", projectID, "request_id", r.ID, "amount", amount.String())
	return r, nil
}

func (s *Service) GetRequest(ctx context.Context, projectID, requestID string) (RequestView, error) {
	r, err := s.store.GetFundRequest(ctx, projectID, requestID)
	if errors.Is(err, ledger.ErrNotFound) {
		return RequestView{}, fmt.Errorf("%w: fund request %s", ErrNotFound, requestID)
	}
	if err != nil {
		return RequestView{}, classify("get request", err)
	}
	names := s.names(ctx, r.RequesterID, r.ApproverID)
	return RequestView{FundRequest: r, RequesterName: names[r.RequesterID], ApproverName: names[r.ApproverID]}, nil
}

// ApproveRequest resolves a pending request and, in the same transaction,
// creates its approved disbursement and the REQUEST_APPROVED entry.
// A nil adjusted amount approves the requested amount.
func (s *Service) ApproveRequest(ctx context.Context, projectID, requestID, approverID string, adjusted *decimal.Decimal, note string) (RequestApproval, error) {
	if err := requireIDs(projectID, approverID); err != nil {
		return RequestApproval{}, err
	}
	if adjusted != nil {
		if err := checkAmount("adjusted_amount", *adjusted, false); err != nil {
			return RequestApproval{}, err
		}
	}

	now := s.now()
	var out RequestApproval
	err := s.store.WithTx(ctx, func(ctx context.Context, q *ledger.Queries) error {
		r, err := s.pendingRequest(ctx, q, projectID, requestID)
		if err != nil {
			return err
		}
		final := r.Amount
		if adjusted != nil {
			final = *adjusted
		}

		if err := q.TransitionFundRequest(ctx, projectID, requestID,
			ledger.RequestStatusPending, ledger.RequestStatusApproved,
			ledger.Review{
				ApproverID:     approverID,
				ApprovedAmount: decimal.NewNullDecimal(final),
				Note:           note,
				ReviewedAt:     now,
			}); err != nil {
			return s.requestMiss(ctx, q, projectID, requestID, err)
		}

		d := ledger.Disbursement{
			ID:            uuid.NewString(),
			ProjectID:     projectID,
			FundRequestID: &r.ID,
			RecipientID:   r.RequesterID,
			Amount:        final,
			Category:      r.Category,
			Status:        ledger.DisbursementStatusApproved,
			Description:   r.Justification,
			CreatedAt:     now,
		}
		if err := q.InsertDisbursement(ctx, d); err != nil {
			return err
		}

		if err := s.record(ctx, q, audit.Entry{
			ProjectID: projectID,
			ActorID:   approverID,
			Action:    audit.ActionRequestApproved,
			Amount:    final,
			Note:      note,
			RefID:     requestID,
		}); err != nil {
			return err
		}

		resolved, err := q.GetFundRequest(ctx, projectID, requestID)
		if err != nil {
			return err
		}
		out = RequestApproval{Request: resolved, Disbursement: d}
		return nil
	})
	if err != nil {
		return RequestApproval{}, classify("approve request", err)
	}

	logger.From(ctx).Info("fund request approved",
		"project_id", projectID,
		"request_id", requestID,
		"disbursement_id", out.Disbursement.ID,
		"amount", out.Disbursement.Amount.String(),
	)
	return out, nil
}

func (s *Service) RejectRequest(ctx context.Context, projectID, requestID, approverID, note string) (ledger.FundRequest, error) {
	if err := requireIDs(projectID, approverID); err != nil {
		return ledger.FundRequest{}, err
	}

	now := s.now()
	var out ledger.FundRequest
	err := s.store.WithTx(ctx, func(ctx context.Context, q *ledger.Queries) error {
		r, err := s.pendingRequest(ctx, q, projectID, requestID)
		if err != nil {
			return err
		}
		if err := q.TransitionFundRequest(ctx, projectID, requestID,
			ledger.RequestStatusPending, ledger.RequestStatusRejected,
			ledger.Review{ApproverID: approverID, Note: note, ReviewedAt: now}); err != nil {
			return s.requestMiss(ctx, q, projectID, requestID, err)
		}

		if err := s.record(ctx, q, audit.Entry{
			ProjectID: projectID,
			ActorID:   approverID,
			Action:    audit.ActionRequestRejected,
			Amount:    r.Amount,
			Note:      note,
			RefID:     requestID,
		}); err != nil {
			return err
		}

		out, err = q.GetFundRequest(ctx, projectID, requestID)
		return err
	})
	if err != nil {
		return ledger.FundRequest{}, classify("reject request", err)
	}

	logger.From(ctx).Info("fund request rejected", "project_id", projectID, "request_id", requestID)
	return out, nil
}

// ListRequests returns requests newest first. An empty status lists all.
func (s *Service) ListRequests(ctx context.Context, projectID, status string) ([]RequestView, error) {
	st := ledger.RequestStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, validationf("unknown status %q", status)
	}

	rs, err := s.store.ListFundRequests(ctx, projectID, st)
	if err != nil {
		return nil, classify("list requests", err)
	}

	ids := make([]string, 0, 2*len(rs))
	for _, r := range rs {
		ids = append(ids, r.RequesterID, r.ApproverID)
	}
	names := s.names(ctx, ids...)

	out := make([]RequestView, 0, len(rs))
	for _, r := range rs {
		out = append(out, RequestView{FundRequest: r, RequesterName: names[r.RequesterID], ApproverName: names[r.ApproverID]})
	}
	return out, nil
}

// pendingRequest loads a request that is expected to still be pending.
// The conditional update that follows remains the authority; this read only
// supplies the amount and gives an early answer for resolved requests.
func (s *Service) pendingRequest(ctx context.Context, q *ledger.Queries, projectID, requestID string) (ledger.FundRequest, error) {
	r, err := q.GetFundRequest(ctx, projectID, requestID)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.FundRequest{}, fmt.Errorf("%w: fund request %s", ErrNotFound, requestID)
	}
	if err != nil {
		return ledger.FundRequest{}, err
	}
	if r.Status != ledger.RequestStatusPending {
		return ledger.FundRequest{}, fmt.Errorf("%w: fund request %s is already %s", ErrConflict, requestID, r.Status)
	}
	return r, nil
}

func (s *Service) requestMiss(ctx context.Context, q *ledger.Queries, projectID, requestID string, err error) error {
	return resolveMiss(err, "fund request", requestID, func() error {
		_, err := q.GetFundRequest(ctx, projectID, requestID)
		return err
	})
}
