// Package ledger maintains the points balance on profiles together with the
// append-only points_transactions log. Every balance change and its ledger row
// commit in one transaction, so the balance always equals the transaction sum.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds reports a debit larger than the current balance.
	ErrInsufficientFunds = errors.New("insufficient points balance")
	// ErrProfileNotFound reports a ledger operation against an unknown user.
	ErrProfileNotFound = errors.New("profile not found")
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// Debit removes amount points from the user's balance and appends the
// matching spend row. The balance check and the decrement are a single
// conditional UPDATE, so two concurrent debits for the same user serialize on
// the profile row and at most one can drain the balance.
func (l *Conf) Debit(ctx context.Context, userID string, amount int, description string, orderID *string) (int, error) {
	var newBalance int
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		newBalance, err = DebitTx(ctx, tx, userID, amount, description, orderID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Credit adds amount points to the user's balance and appends the matching
// purchase row.
func (l *Conf) Credit(ctx context.Context, userID string, amount int, description string, orderID *string) (int, error) {
	var newBalance int
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		newBalance, err = CreditTx(ctx, tx, userID, amount, description, orderID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// DebitTx is the transaction-scoped debit used by the checkout orchestrator
// so the debit can share a transaction with order creation.
func DebitTx(ctx context.Context, tx *sql.Tx, userID string, amount int, description string, orderID *string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	const queryDebit = `
		UPDATE profiles
		SET points = points - $2, updated_at = NOW()
		WHERE id = $1 AND points >= $2
		RETURNING points
	`
	var newBalance int
	err := tx.QueryRowContext(ctx, queryDebit, userID, amount).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the profile is missing or the balance is short.
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, userID).Scan(&exists); err != nil {
				return 0, fmt.Errorf("checking profile existence: %w", err)
			}
			if !exists {
				return 0, ErrProfileNotFound
			}
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("debiting balance: %w", err)
	}

	if err := appendTransaction(ctx, tx, userID, -amount, TypeSpend, description, orderID); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// CreditTx is the transaction-scoped credit used by the webhook finalizer so
// the credit can share a transaction with the dedup insert.
func CreditTx(ctx context.Context, tx *sql.Tx, userID string, amount int, description string, orderID *string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	const queryCredit = `
		UPDATE profiles
		SET points = points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING points
	`
	var newBalance int
	err := tx.QueryRowContext(ctx, queryCredit, userID, amount).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("crediting balance: %w", err)
	}

	if err := appendTransaction(ctx, tx, userID, amount, TypePurchase, description, orderID); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func appendTransaction(ctx context.Context, tx *sql.Tx, userID string, amount int, txType, description string, orderID *string) error {
	const queryInsert = `
		INSERT INTO points_transactions (user_id, amount, type, description, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := tx.ExecContext(ctx, queryInsert, userID, amount, txType, description, orderID); err != nil {
		return fmt.Errorf("appending ledger transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the user's ledger rows, newest first.
func (l *Conf) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	const queryList = `
		SELECT id, user_id, amount, type, description, order_id, created_at
		FROM points_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := l.db.QueryContext(ctx, queryList, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying ledger transactions: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &t.OrderID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger transactions: %w", err)
	}
	return transactions, nil
}

func (l *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
