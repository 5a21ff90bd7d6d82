package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkoval/chatpoint/internal/core/domain"
	"github.com/mkoval/chatpoint/internal/core/ports"
)

// PointsLedger gates billed responses on a per-tenant prepaid balance.
// All mutations go through the storage layer's atomic primitives, so two
// concurrent debits can never both succeed on one charge's worth of balance.
type PointsLedger struct {
	store               ports.LedgerStore
	lowBalanceThreshold int64
	trialGrantAmount    int64
}

func NewPointsLedger(store ports.LedgerStore, lowBalanceThreshold, trialGrantAmount int64) *PointsLedger {
	if lowBalanceThreshold <= 0 {
		lowBalanceThreshold = domain.DefaultLowBalanceThreshold
	}
	if trialGrantAmount <= 0 {
		trialGrantAmount = 500
	}
	return &PointsLedger{
		store:               store,
		lowBalanceThreshold: lowBalanceThreshold,
		trialGrantAmount:    trialGrantAmount,
	}
}

// Validate reads the current balance and decides whether a response of the
// given cost may be produced. Storage errors fail closed: no decision, no
// generation.
func (l *PointsLedger) Validate(ctx context.Context, tenantID string, required int64) (domain.AdmissionDecision, error) {
	if strings.TrimSpace(tenantID) == "" {
		return domain.AdmissionDecision{}, domain.WrapError(domain.ErrInvalidInput, "validate admission", fmt.Errorf("tenant id is required"))
	}
	if required < 0 {
		return domain.AdmissionDecision{}, domain.WrapError(domain.ErrInvalidInput, "validate admission", fmt.Errorf("required amount must not be negative"))
	}

	account, err := l.store.GetAccount(ctx, tenantID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.AdmissionDecision{
				CanProceed: false,
				Balance:    0,
				Reason:     domain.AdmissionReasonInsufficientPoints,
			}, nil
		}
		return domain.AdmissionDecision{}, fmt.Errorf("read points account: %w", err)
	}

	if account.Balance < required {
		return domain.AdmissionDecision{
			CanProceed: false,
			Balance:    account.Balance,
			Reason:     domain.AdmissionReasonInsufficientPoints,
		}, nil
	}

	decision := domain.AdmissionDecision{CanProceed: true, Balance: account.Balance}
	remaining := account.Balance - required
	if remaining > 0 && remaining <= l.lowBalanceThreshold {
		decision.Warning = domain.AdmissionWarningLowBalance
	}
	return decision, nil
}

// Balance returns the tenant's current balance; missing accounts read as zero.
func (l *PointsLedger) Balance(ctx context.Context, tenantID string) (int64, error) {
	account, err := l.store.GetAccount(ctx, tenantID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read points account: %w", err)
	}
	return account.Balance, nil
}

// Debit is the only path that decreases a balance. The decrement is
// conditional at the storage layer; a concurrent debit that already
// exhausted the balance surfaces as ErrInsufficientPoints.
func (l *PointsLedger) Debit(ctx context.Context, tenantID string, amount int64, meta domain.TransactionMetadata) (*domain.PointsTransaction, error) {
	if amount <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "debit points", fmt.Errorf("amount must be positive, got %d", amount))
	}
	tx := domain.PointsTransaction{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Type:      domain.TransactionResponseDebit,
		Amount:    -amount,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	recorded, err := l.store.DebitIfSufficient(ctx, tenantID, amount, tx)
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// Credit applies a positive adjustment (charge, refund, admin adjustment).
func (l *PointsLedger) Credit(ctx context.Context, tenantID string, amount int64, txType domain.TransactionType, meta domain.TransactionMetadata) (*domain.PointsTransaction, error) {
	if amount <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "credit points", fmt.Errorf("amount must be positive, got %d", amount))
	}
	switch txType {
	case domain.TransactionCharge, domain.TransactionRefund, domain.TransactionAdminAdjustment:
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "credit points", fmt.Errorf("unsupported credit type: %s", txType))
	}
	tx := domain.PointsTransaction{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Type:      txType,
		Amount:    amount,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	return l.store.Credit(ctx, tenantID, amount, tx)
}

// GrantTrial applies the one-time free trial credit. Repeated calls for the
// same tenant are no-ops after the first and return a nil transaction.
func (l *PointsLedger) GrantTrial(ctx context.Context, tenantID string) (*domain.PointsTransaction, error) {
	tx := domain.PointsTransaction{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Type:      domain.TransactionTrialGrant,
		Amount:    l.trialGrantAmount,
		CreatedAt: time.Now().UTC(),
	}
	return l.store.GrantTrialOnce(ctx, tenantID, l.trialGrantAmount, tx)
}
