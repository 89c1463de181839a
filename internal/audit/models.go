package audit

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is an immutable, append-only record of a money-affecting state change.
//
// Invariants:
// - Entries are never updated or deleted.
// - Every entry is written in the same transaction as the change it records.
// - RefID points at the budget's project, the fund request or the disbursement.
//
// Storage: table audit_log, INSERT-only; triggers reject UPDATE and DELETE.
type Entry struct {
	ID        string          `json:"id" db:"id"`
	ProjectID string          `json:"project_id" db:"project_id"`
	ActorID   string          `json:"actor_id" db:"actor_id"`
	Action    Action          `json:"action" db:"action"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Note      string          `json:"note,omitempty" db:"note"`
	RefID     string          `json:"ref_id" db:"ref_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Action tags the kind of change. Values are persisted; keep them stable.
type Action string

const (
	ActionBudgetAdjusted        Action = "BUDGET_ADJUSTED"
	ActionRequestApproved       Action = "REQUEST_APPROVED"
	ActionRequestRejected       Action = "REQUEST_REJECTED"
	ActionDisbursementScheduled Action = "DISBURSEMENT_SCHEDULED"
	ActionDisbursementApproved  Action = "DISBURSEMENT_APPROVED"
	ActionDisbursementPaid      Action = "DISBURSEMENT_PAID"
	ActionDisbursementCancelled Action = "DISBURSEMENT_CANCELLED"
	ActionBatchPayrollApproved  Action = "BATCH_PAYROLL_APPROVED"
)

// DisbursementAction maps a disbursement status ("paid") to its audit tag
// ("DISBURSEMENT_PAID").
func DisbursementAction(status string) Action {
	return Action("DISBURSEMENT_" + strings.ToUpper(status))
}

func (a Action) Valid() bool {
	switch a {
	case ActionBudgetAdjusted,
		ActionRequestApproved,
		ActionRequestRejected,
		ActionDisbursementScheduled,
		ActionDisbursementApproved,
		ActionDisbursementPaid,
		ActionDisbursementCancelled,
		ActionBatchPayrollApproved:
		return true
	default:
		return false
	}
}
