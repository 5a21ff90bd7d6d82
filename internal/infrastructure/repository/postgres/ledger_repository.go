package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkoval/chatpoint/internal/core/domain"
)

// LedgerRepository is the storage side of the points ledger. The debit path
// is a single conditional UPDATE so the balance check and the decrement are
// one atomic statement.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) GetAccount(ctx context.Context, tenantID string) (*domain.PointsAccount, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT tenant_id, balance, free_trial_granted, monthly_base_amount, last_recharge_at, updated_at
FROM points_accounts
WHERE tenant_id = $1
`, tenantID)

	var account domain.PointsAccount
	err := row.Scan(
		&account.TenantID,
		&account.Balance,
		&account.FreeTrialGranted,
		&account.MonthlyBaseAmount,
		&account.LastRechargeAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get points account", err)
		}
		return nil, fmt.Errorf("scan points account: %w", err)
	}
	return &account, nil
}

func (r *LedgerRepository) DebitIfSufficient(ctx context.Context, tenantID string, amount int64, txRecord domain.PointsTransaction) (*domain.PointsTransaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin debit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
UPDATE points_accounts
SET balance = balance - $2, updated_at = $3
WHERE tenant_id = $1 AND balance >= $2
RETURNING balance
`, tenantID, amount, time.Now().UTC())

	var resultingBalance int64
	if err := row.Scan(&resultingBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrInsufficientPoints, "debit points", errors.New("conditional update affected no rows"))
		}
		return nil, fmt.Errorf("debit points account: %w", err)
	}

	txRecord.ResultingBalance = resultingBalance
	if err := insertTransaction(ctx, tx, txRecord); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit debit tx: %w", err)
	}
	return &txRecord, nil
}

func (r *LedgerRepository) Credit(ctx context.Context, tenantID string, amount int64, txRecord domain.PointsTransaction) (*domain.PointsTransaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin credit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
INSERT INTO points_accounts (tenant_id, balance, last_recharge_at, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT (tenant_id) DO UPDATE
SET balance = points_accounts.balance + EXCLUDED.balance,
    last_recharge_at = EXCLUDED.last_recharge_at,
    updated_at = EXCLUDED.updated_at
RETURNING balance
`, tenantID, amount, time.Now().UTC())

	var resultingBalance int64
	if err := row.Scan(&resultingBalance); err != nil {
		return nil, fmt.Errorf("credit points account: %w", err)
	}

	txRecord.ResultingBalance = resultingBalance
	if err := insertTransaction(ctx, tx, txRecord); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credit tx: %w", err)
	}
	return &txRecord, nil
}

// GrantTrialOnce credits the trial amount only if the account has never
// received it. A nil transaction with nil error means the grant was already
// consumed.
func (r *LedgerRepository) GrantTrialOnce(ctx context.Context, tenantID string, amount int64, txRecord domain.PointsTransaction) (*domain.PointsTransaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin trial grant tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
INSERT INTO points_accounts (tenant_id, balance, free_trial_granted, updated_at)
VALUES ($1, $2, TRUE, $3)
ON CONFLICT (tenant_id) DO UPDATE
SET balance = points_accounts.balance + EXCLUDED.balance,
    free_trial_granted = TRUE,
    updated_at = EXCLUDED.updated_at
WHERE points_accounts.free_trial_granted = FALSE
RETURNING balance
`, tenantID, amount, time.Now().UTC())

	var resultingBalance int64
	if err := row.Scan(&resultingBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("grant trial points: %w", err)
	}

	txRecord.ResultingBalance = resultingBalance
	if err := insertTransaction(ctx, tx, txRecord); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit trial grant tx: %w", err)
	}
	return &txRecord, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, record domain.PointsTransaction) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshal transaction metadata: %w", err)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO points_transactions (id, tenant_id, type, amount, resulting_balance, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, record.ID, record.TenantID, string(record.Type), record.Amount, record.ResultingBalance, metadata, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert points transaction: %w", err)
	}
	return nil
}
