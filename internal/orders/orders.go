// Package orders persists checkout attempts and their line-item snapshots and
// enforces the order status lifecycle.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound reports a lookup for an order that does not exist.
var ErrNotFound = errors.New("order not found")

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// CreateTx inserts the order and its item snapshots inside the caller's
// transaction. The caller decides what else commits with it (ledger debit,
// cart cleanup).
func CreateTx(ctx context.Context, tx *sql.Tx, order Order, items []Item) error {
	if !ValidStatus(order.Status) {
		return fmt.Errorf("unknown order status %q", order.Status)
	}
	if len(items) == 0 {
		return fmt.Errorf("order %s has no items", order.ID)
	}

	const queryOrder = `
		INSERT INTO orders (id, user_id, total_cents, total_points, payment_method, status, stripe_session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := tx.ExecContext(ctx, queryOrder, order.ID, order.UserID, order.TotalCents,
		order.TotalPoints, order.PaymentMethod, order.Status, order.StripeSessionID)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	const queryItem = `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, price_cents, points_price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, item := range items {
		_, err := tx.ExecContext(ctx, queryItem, order.ID, item.ProductID, item.ProductName,
			item.Quantity, item.PriceCents, item.PointsPrice)
		if err != nil {
			return fmt.Errorf("inserting order item for product %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// MarkCompletedTx moves a pending order to completed. The WHERE clause is the
// transition guard: zero rows means the order was not pending (or not there),
// reported as ErrInvalidTransition for the caller to interpret.
func MarkCompletedTx(ctx context.Context, tx *sql.Tx, orderID, stripePaymentID string) error {
	const queryComplete = `
		UPDATE orders
		SET status = $2, stripe_payment_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	res, err := tx.ExecContext(ctx, queryComplete, orderID, StatusCompleted, stripePaymentID, StatusPending)
	if err != nil {
		return fmt.Errorf("completing order %s: %w", orderID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("completing order %s: %w", orderID, err)
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkFailedTx moves a pending order to failed under the same guard.
func MarkFailedTx(ctx context.Context, tx *sql.Tx, orderID string) error {
	const queryFail = `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	res, err := tx.ExecContext(ctx, queryFail, orderID, StatusFailed, StatusPending)
	if err != nil {
		return fmt.Errorf("failing order %s: %w", orderID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failing order %s: %w", orderID, err)
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkFailed moves a pending order to failed in its own transaction.
func (o *Conf) MarkFailed(ctx context.Context, orderID string) error {
	return o.withTx(ctx, func(tx *sql.Tx) error {
		return MarkFailedTx(ctx, tx, orderID)
	})
}

// GetTx fetches an order by id inside the caller's transaction, locking the
// row so a concurrent finalizer cannot race the status check.
func GetTx(ctx context.Context, tx *sql.Tx, orderID string) (Order, error) {
	const queryGet = `
		SELECT id, user_id, total_cents, total_points, payment_method, status, stripe_session_id, stripe_payment_id, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`
	var order Order
	err := tx.QueryRowContext(ctx, queryGet, orderID).Scan(&order.ID, &order.UserID, &order.TotalCents,
		&order.TotalPoints, &order.PaymentMethod, &order.Status, &order.StripeSessionID,
		&order.StripePaymentID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("querying order %s: %w", orderID, err)
	}
	return order, nil
}

// GetByStripeSession looks an order up by its checkout session id. Used for
// provider events that carry no order metadata.
func (o *Conf) GetByStripeSession(ctx context.Context, sessionID string) (Order, error) {
	const queryGet = `
		SELECT id, user_id, total_cents, total_points, payment_method, status, stripe_session_id, stripe_payment_id, created_at, updated_at
		FROM orders
		WHERE stripe_session_id = $1
	`
	var order Order
	err := o.db.QueryRowContext(ctx, queryGet, sessionID).Scan(&order.ID, &order.UserID, &order.TotalCents,
		&order.TotalPoints, &order.PaymentMethod, &order.Status, &order.StripeSessionID,
		&order.StripePaymentID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("querying order by session %s: %w", sessionID, err)
	}
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (o *Conf) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	const queryList = `
		SELECT id, user_id, total_cents, total_points, payment_method, status, stripe_session_id, stripe_payment_id, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := o.db.QueryContext(ctx, queryList, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var list []Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.TotalCents, &order.TotalPoints,
			&order.PaymentMethod, &order.Status, &order.StripeSessionID, &order.StripePaymentID,
			&order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		list = append(list, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return list, nil
}

func (o *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := o.db.BeginTx(ctx, nil)
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
