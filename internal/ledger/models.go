package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ProjectBudget is the single budget row of a project.
// It is upserted, never deleted. Currency is fixed once the row exists.
//
// Used/remaining figures are NOT stored here; they are derived from
// disbursements at read time.
type ProjectBudget struct {
	ProjectID   string          `json:"project_id" db:"project_id"`
	TotalBudget decimal.Decimal `json:"total_budget" db:"total_budget"`
	Currency    string          `json:"currency" db:"currency"`
	UpdatedBy   string          `json:"updated_by" db:"updated_by"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// FundRequest is a request for money against a project budget.
// It is created pending and leaves pending exactly once.
type FundRequest struct {
	ID            string          `json:"id" db:"id"`
	ProjectID     string          `json:"project_id" db:"project_id"`
	RequesterID   string          `json:"requester_id" db:"requester_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Category      string          `json:"category" db:"category"`
	Justification string          `json:"justification" db:"justification"`
	Status        RequestStatus   `json:"status" db:"status"`

	// Review fields are empty while pending.
	ApproverID     string              `json:"approver_id,omitempty" db:"approver_id"`
	ApprovedAmount decimal.NullDecimal `json:"approved_amount" db:"approved_amount"`
	ReviewerNote   string              `json:"reviewer_note,omitempty" db:"reviewer_note"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ReviewedAt *time.Time `json:"reviewed_at" db:"reviewed_at"`
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	default:
		return false
	}
}

// Review carries the fields written when a request is resolved.
type Review struct {
	ApproverID     string
	ApprovedAmount decimal.NullDecimal
	Note           string
	ReviewedAt     time.Time
}

// Disbursement is a money-movement record. Approvals create it in approved;
// manual entries start scheduled. PaidAt is stamped once, on the move to paid.
type Disbursement struct {
	ID            string             `json:"id" db:"id"`
	ProjectID     string             `json:"project_id" db:"project_id"`
	FundRequestID *string            `json:"fund_request_id" db:"fund_request_id"`
	RecipientID   string             `json:"recipient_id" db:"recipient_id"`
	Amount        decimal.Decimal    `json:"amount" db:"amount"`
	Category      string             `json:"category" db:"category"`
	Status        DisbursementStatus `json:"status" db:"status"`
	Description   string             `json:"description,omitempty" db:"description"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	PaidAt        *time.Time         `json:"paid_at" db:"paid_at"`
}

type DisbursementStatus string

const (
	DisbursementStatusScheduled DisbursementStatus = "scheduled"
	DisbursementStatusApproved  DisbursementStatus = "approved"
	DisbursementStatusPaid      DisbursementStatus = "paid"
	DisbursementStatusCancelled DisbursementStatus = "cancelled"
)

// CommittedStatuses are the disbursement states that count against a budget.
var CommittedStatuses = []DisbursementStatus{DisbursementStatusApproved, DisbursementStatusPaid}

// PayableStatuses are swept to paid by a batch payout.
var PayableStatuses = []DisbursementStatus{DisbursementStatusApproved, DisbursementStatusScheduled}

// SourcesFor returns the states a disbursement may move to target from.
// An empty result means target is not reachable by a single status update.
func SourcesFor(target DisbursementStatus) []DisbursementStatus {
	switch target {
	case DisbursementStatusApproved:
		return []DisbursementStatus{DisbursementStatusScheduled}
	case DisbursementStatusPaid:
		return []DisbursementStatus{DisbursementStatusApproved}
	case DisbursementStatusCancelled:
		return []DisbursementStatus{DisbursementStatusScheduled, DisbursementStatusApproved}
	default:
		return nil
	}
}

// Payment is a paid disbursement reduced to what burn-rate math needs.
type Payment struct {
	Amount decimal.Decimal
	PaidAt time.Time
}

// PendingTotals summarises fund requests still awaiting review.
type PendingTotals struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Payout is the result of a batch sweep to paid.
type Payout struct {
	Count  int             `json:"paid_count"`
	Total  decimal.Decimal `json:"total"`
	PaidAt time.Time       `json:"paid_at"`
}
