package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage"
)

var timeNow = time.Now

// Deposit credits an account and records the entry.
func (s *Store) Deposit(ctx context.Context, account string, amount money.Amount) (money.Amount, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	account, err := storage.NormalizeDeposit(account, amount)
	if err != nil {
		return 0, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	if err := tx.QueryRowContext(ctx, `
INSERT INTO vault_balances (account, balance) VALUES (?, ?)
ON CONFLICT(account) DO UPDATE SET balance = balance + excluded.balance
RETURNING balance`, account, int64(amount)).Scan(&balance); err != nil {
		return 0, fmt.Errorf("deposit: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO vault_entries (to_account, amount, memo, created_at) VALUES (?, ?, 'deposit', ?)`,
		account, int64(amount), toMillis(timeNow()),
	); err != nil {
		return 0, fmt.Errorf("record deposit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return money.Amount(balance), nil
}

// Balance returns an account balance; unknown accounts hold zero.
func (s *Store) Balance(ctx context.Context, account string) (money.Amount, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var balance int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT balance FROM vault_balances WHERE account = ?`, strings.TrimSpace(account),
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return money.Amount(balance), nil
}
