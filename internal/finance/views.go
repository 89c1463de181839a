package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"finance-tower/internal/audit"
	"finance-tower/internal/ledger"
)

type Overview struct {
	ProjectID       string               `json:"project_id"`
	TotalBudget     decimal.Decimal      `json:"total_budget"`
	Currency        string               `json:"currency"`
	BudgetUsed      decimal.Decimal      `json:"budget_used"`
	Remaining       decimal.Decimal      `json:"remaining"`
	UsedPercent     int64                `json:"used_percent"`
	MonthlyBurn     decimal.Decimal      `json:"monthly_burn"`
	RunwayMonths    *int64               `json:"runway_months"`
	PendingRequests ledger.PendingTotals `json:"pending_requests"`
	UpdatedBy       string               `json:"updated_by"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type RequestView struct {
	ledger.FundRequest
	RequesterName string `json:"requester_name,omitempty"`
	ApproverName  string `json:"approver_name,omitempty"`
}

type DisbursementView struct {
	ledger.Disbursement
	RecipientName string `json:"recipient_name,omitempty"`
}

type AuditView struct {
	audit.Entry
	ActorName string `json:"actor_name,omitempty"`
}

// RequestApproval is the outcome of an approval: the resolved request and
// the disbursement it created.
type RequestApproval struct {
	Request      ledger.FundRequest  `json:"request"`
	Disbursement ledger.Disbursement `json:"disbursement"`
}
