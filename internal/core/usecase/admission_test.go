package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

type stubLedgerStore struct {
	account    *domain.PointsAccount
	accountErr error

	debits       []int64
	debitErr     error
	trialGranted bool
}

func (s *stubLedgerStore) GetAccount(_ context.Context, tenantID string) (*domain.PointsAccount, error) {
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	if s.account == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "get account", errors.New("no row"))
	}
	account := *s.account
	account.TenantID = tenantID
	return &account, nil
}

func (s *stubLedgerStore) DebitIfSufficient(_ context.Context, _ string, amount int64, tx domain.PointsTransaction) (*domain.PointsTransaction, error) {
	if s.debitErr != nil {
		return nil, s.debitErr
	}
	if s.account == nil || s.account.Balance < amount {
		return nil, domain.WrapError(domain.ErrInsufficientPoints, "debit", errors.New("conditional update affected no rows"))
	}
	s.account.Balance -= amount
	s.debits = append(s.debits, amount)
	tx.ResultingBalance = s.account.Balance
	return &tx, nil
}

func (s *stubLedgerStore) Credit(_ context.Context, _ string, amount int64, tx domain.PointsTransaction) (*domain.PointsTransaction, error) {
	if s.account == nil {
		s.account = &domain.PointsAccount{}
	}
	s.account.Balance += amount
	tx.ResultingBalance = s.account.Balance
	return &tx, nil
}

func (s *stubLedgerStore) GrantTrialOnce(_ context.Context, _ string, amount int64, tx domain.PointsTransaction) (*domain.PointsTransaction, error) {
	if s.trialGranted {
		return nil, nil
	}
	s.trialGranted = true
	if s.account == nil {
		s.account = &domain.PointsAccount{}
	}
	s.account.Balance += amount
	s.account.FreeTrialGranted = true
	tx.ResultingBalance = s.account.Balance
	return &tx, nil
}

func TestValidateBlocksOnInsufficientBalance(t *testing.T) {
	ledger := NewPointsLedger(&stubLedgerStore{account: &domain.PointsAccount{Balance: 0}}, 100, 0)

	decision, err := ledger.Validate(context.Background(), "t-1", 1)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if decision.CanProceed {
		t.Fatalf("expected admission denied at zero balance")
	}
	if decision.Reason != domain.AdmissionReasonInsufficientPoints {
		t.Fatalf("expected INSUFFICIENT_POINTS reason, got %q", decision.Reason)
	}
	if decision.Balance != 0 {
		t.Fatalf("expected current balance 0 in decision, got %d", decision.Balance)
	}
}

func TestValidateExactBalanceProceedsWithoutWarning(t *testing.T) {
	ledger := NewPointsLedger(&stubLedgerStore{account: &domain.PointsAccount{Balance: 1}}, 100, 0)

	decision, err := ledger.Validate(context.Background(), "t-1", 1)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !decision.CanProceed {
		t.Fatalf("expected admission granted with exact balance")
	}
	if decision.Warning != "" {
		t.Fatalf("expected no warning when debit empties the balance, got %q", decision.Warning)
	}
}

func TestValidateLowBalanceWarningAtThreshold(t *testing.T) {
	ledger := NewPointsLedger(&stubLedgerStore{account: &domain.PointsAccount{Balance: 101}}, 100, 0)

	decision, err := ledger.Validate(context.Background(), "t-1", 1)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !decision.CanProceed {
		t.Fatalf("expected admission granted")
	}
	if decision.Warning != domain.AdmissionWarningLowBalance {
		t.Fatalf("expected low balance warning at remaining=100, got %q", decision.Warning)
	}
}

func TestValidateMissingAccountReadsAsZero(t *testing.T) {
	ledger := NewPointsLedger(&stubLedgerStore{}, 100, 0)

	decision, err := ledger.Validate(context.Background(), "t-1", 1)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if decision.CanProceed {
		t.Fatalf("expected missing account to be denied")
	}
}

func TestValidateStorageErrorFailsClosed(t *testing.T) {
	ledger := NewPointsLedger(&stubLedgerStore{accountErr: errors.New("pg down")}, 100, 0)

	if _, err := ledger.Validate(context.Background(), "t-1", 1); err == nil {
		t.Fatalf("expected storage error to surface, got nil")
	}
}

func TestDebitRecordsNegativeTransaction(t *testing.T) {
	store := &stubLedgerStore{account: &domain.PointsAccount{Balance: 10}}
	ledger := NewPointsLedger(store, 100, 0)

	tx, err := ledger.Debit(context.Background(), "t-1", 3, domain.TransactionMetadata{Channel: "web"})
	if err != nil {
		t.Fatalf("Debit() error = %v", err)
	}
	if tx.Amount != -3 {
		t.Fatalf("expected signed amount -3, got %d", tx.Amount)
	}
	if tx.Type != domain.TransactionResponseDebit {
		t.Fatalf("expected debit_for_response type, got %q", tx.Type)
	}
	if tx.ResultingBalance != 7 {
		t.Fatalf("expected resulting balance 7, got %d", tx.ResultingBalance)
	}
}

func TestDebitInsufficientSurfacesTypedError(t *testing.T) {
	ledger := NewPointsLedger(&stubLedgerStore{account: &domain.PointsAccount{Balance: 1}}, 100, 0)

	if _, err := ledger.Debit(context.Background(), "t-1", 2, domain.TransactionMetadata{}); !domain.IsKind(err, domain.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	ledger := NewPointsLedger(&stubLedgerStore{account: &domain.PointsAccount{Balance: 10}}, 100, 0)

	if _, err := ledger.Debit(context.Background(), "t-1", 0, domain.TransactionMetadata{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero amount, got %v", err)
	}
}

func TestCreditRejectsDebitType(t *testing.T) {
	ledger := NewPointsLedger(&stubLedgerStore{}, 100, 0)

	if _, err := ledger.Credit(context.Background(), "t-1", 5, domain.TransactionResponseDebit, domain.TransactionMetadata{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for debit type on credit path, got %v", err)
	}
}

func TestGrantTrialIsIdempotent(t *testing.T) {
	store := &stubLedgerStore{}
	ledger := NewPointsLedger(store, 100, 500)

	first, err := ledger.GrantTrial(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("first GrantTrial() error = %v", err)
	}
	if first == nil || first.Amount != 500 {
		t.Fatalf("expected trial grant of 500, got %+v", first)
	}

	second, err := ledger.GrantTrial(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("second GrantTrial() error = %v", err)
	}
	if second != nil {
		t.Fatalf("expected repeated grant to be a no-op, got %+v", second)
	}
	if store.account.Balance != 500 {
		t.Fatalf("expected balance 500 after repeated grants, got %d", store.account.Balance)
	}
}
