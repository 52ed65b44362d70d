// Package cart persists the per-user shopping cart.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrItemNotFound reports an update or delete against a missing cart row.
var ErrItemNotFound = errors.New("cart item not found")

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// AddItem upserts a cart row and returns it; adding a product already in the
// cart folds the quantities together.
func (c *Conf) AddItem(ctx context.Context, userID, productID string, quantity int) (Item, error) {
	if quantity <= 0 {
		return Item{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	const queryUpsert = `
		INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, user_id, product_id, quantity, created_at, updated_at
	`
	var item Item
	err := c.db.QueryRowContext(ctx, queryUpsert, userID, productID, quantity).Scan(&item.ID,
		&item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, fmt.Errorf("upserting cart item: %w", err)
	}
	return item, nil
}

// SetQuantity replaces the quantity of an existing cart row.
func (c *Conf) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	const queryUpdate = `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE user_id = $1 AND product_id = $2
	`
	res, err := c.db.ExecContext(ctx, queryUpdate, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating cart item: %w", err)
	}
	if rows == 0 {
		return ErrItemNotFound
	}
	return nil
}

// RemoveItem deletes one product from the user's cart.
func (c *Conf) RemoveItem(ctx context.Context, userID, productID string) error {
	const queryDelete = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`
	res, err := c.db.ExecContext(ctx, queryDelete, userID, productID)
	if err != nil {
		return fmt.Errorf("deleting cart item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting cart item: %w", err)
	}
	if rows == 0 {
		return ErrItemNotFound
	}
	return nil
}

// GetDetailedItems returns the cart joined with current catalog prices. Only
// approved products are eligible for checkout, so the join filters on status.
func (c *Conf) GetDetailedItems(ctx context.Context, userID string) (*Response, error) {
	const queryItems = `
		SELECT ci.product_id, p.name, ci.quantity, p.price_cents, p.points_price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1 AND p.status = 'approved'
		ORDER BY ci.created_at
	`
	rows, err := c.db.QueryContext(ctx, queryItems, userID)
	if err != nil {
		return nil, fmt.Errorf("querying cart items: %w", err)
	}
	defer rows.Close()

	var items []DetailedItem
	for rows.Next() {
		var item DetailedItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.PriceCents, &item.PointsPrice); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cart items: %w", err)
	}

	return &Response{Items: items}, nil
}

// DeleteForUserTx removes the purchased products from the user's cart inside
// the caller's transaction, so cart cleanup commits with the order.
func DeleteForUserTx(ctx context.Context, tx *sql.Tx, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	const queryDelete = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`
	if _, err := tx.ExecContext(ctx, queryDelete, userID, productIDs); err != nil {
		return fmt.Errorf("clearing purchased cart items: %w", err)
	}
	return nil
}
