package domain

import "time"

// TransactionType classifies a points ledger mutation.
type TransactionType string

const (
	TransactionCharge          TransactionType = "charge"
	TransactionResponseDebit   TransactionType = "debit_for_response"
	TransactionRefund          TransactionType = "refund"
	TransactionAdminAdjustment TransactionType = "admin_adjustment"
	TransactionTrialGrant      TransactionType = "trial_grant"
)

// PointsAccount is the live prepaid balance of one tenant.
// Balance never goes negative; every change is recorded as a PointsTransaction.
type PointsAccount struct {
	TenantID          string     `json:"tenant_id"`
	Balance           int64      `json:"balance"`
	FreeTrialGranted  bool       `json:"free_trial_granted"`
	MonthlyBaseAmount int64      `json:"monthly_base_amount"`
	LastRechargeAt    *time.Time `json:"last_recharge_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TransactionMetadata carries free-form request context into the audit log.
type TransactionMetadata struct {
	Channel        string `json:"channel,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	Note           string `json:"note,omitempty"`
}

// PointsTransaction is an immutable audit record of one balance mutation.
// Amount is signed: debits are negative, credits positive.
type PointsTransaction struct {
	ID               string              `json:"id"`
	TenantID         string              `json:"tenant_id"`
	Type             TransactionType     `json:"type"`
	Amount           int64               `json:"amount"`
	ResultingBalance int64               `json:"resulting_balance"`
	Metadata         TransactionMetadata `json:"metadata"`
	CreatedAt        time.Time           `json:"created_at"`
}

// AdmissionWarning is an advisory attached to a positive admission decision.
type AdmissionWarning string

const AdmissionWarningLowBalance AdmissionWarning = "LOW_BALANCE_WARNING"

// AdmissionReason explains a negative admission decision.
type AdmissionReason string

const AdmissionReasonInsufficientPoints AdmissionReason = "INSUFFICIENT_POINTS"

// AdmissionDecision is the outcome of a pre-generation balance check.
type AdmissionDecision struct {
	CanProceed bool             `json:"can_proceed"`
	Balance    int64            `json:"balance"`
	Reason     AdmissionReason  `json:"reason,omitempty"`
	Warning    AdmissionWarning `json:"warning,omitempty"`
}

// DefaultLowBalanceThreshold is the remaining-balance level at or below
// which a successful admission carries a low-balance advisory.
const DefaultLowBalanceThreshold = 100
