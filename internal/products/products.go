// Package products is the catalog store: read path for listings and the
// authoritative price source at checkout time.
package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports a lookup for a product that does not exist.
var ErrNotFound = errors.New("product not found")

// sortColumns whitelists the ORDER BY surface; anything else falls back to
// name to keep user input out of the SQL.
var sortColumns = map[string]string{
	"name":         "name",
	"price_cents":  "price_cents",
	"points_price": "points_price",
	"created_at":   "created_at",
}

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// Insert stores a new product in pending moderation status.
func (p *Conf) Insert(ctx context.Context, id string, np NewProduct) (Product, error) {
	const queryInsert = `
		INSERT INTO products (id, name, description, category, price_cents, points_price, status, media_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, name, description, category, price_cents, points_price, stripe_price_id, status, media_url, created_at, updated_at
	`
	var product Product
	err := p.db.QueryRowContext(ctx, queryInsert, id, np.Name, np.Description, np.Category,
		np.PriceCents, np.PointsPrice, StatusPending, np.MediaURL).Scan(
		&product.ID, &product.Name, &product.Description, &product.Category, &product.PriceCents,
		&product.PointsPrice, &product.StripePriceID, &product.Status, &product.MediaURL,
		&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("inserting product: %w", err)
	}
	return product, nil
}

// GetByID fetches one product.
func (p *Conf) GetByID(ctx context.Context, productID string) (Product, error) {
	const queryGet = `
		SELECT id, name, description, category, price_cents, points_price, stripe_price_id, status, media_url, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	var product Product
	err := p.db.QueryRowContext(ctx, queryGet, productID).Scan(
		&product.ID, &product.Name, &product.Description, &product.Category, &product.PriceCents,
		&product.PointsPrice, &product.StripePriceID, &product.Status, &product.MediaURL,
		&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("querying product %s: %w", productID, err)
	}
	return product, nil
}

// GetApprovedByIDs returns the approved subset of the requested products,
// keyed by id. Checkout uses this to recompute prices server-side.
func (p *Conf) GetApprovedByIDs(ctx context.Context, productIDs []string) (map[string]Product, error) {
	if len(productIDs) == 0 {
		return map[string]Product{}, nil
	}

	const queryGet = `
		SELECT id, name, description, category, price_cents, points_price, stripe_price_id, status, media_url, created_at, updated_at
		FROM products
		WHERE id = ANY($1) AND status = $2
	`
	rows, err := p.db.QueryContext(ctx, queryGet, productIDs, StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	found := make(map[string]Product, len(productIDs))
	for rows.Next() {
		var product Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Description, &product.Category,
			&product.PriceCents, &product.PointsPrice, &product.StripePriceID, &product.Status,
			&product.MediaURL, &product.CreatedAt, &product.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		found[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return found, nil
}

// List returns approved products matching the filter.
func (p *Conf) List(ctx context.Context, f ListFilter) ([]Product, error) {
	sortCol, order := SortClause(f.Sort, f.Order)

	query := fmt.Sprintf(`
		SELECT id, name, description, category, price_cents, points_price, stripe_price_id, status, media_url, created_at, updated_at
		FROM products
		WHERE status = $1
		  AND ($2 = '' OR name ILIKE '%%' || $2 || '%%')
		  AND ($3 = '' OR category = $3)
		ORDER BY %s %s
		LIMIT $4 OFFSET $5
	`, sortCol, order)

	rows, err := p.db.QueryContext(ctx, query, StatusApproved, f.Name, f.Category, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var list []Product
	for rows.Next() {
		var product Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Description, &product.Category,
			&product.PriceCents, &product.PointsPrice, &product.StripePriceID, &product.Status,
			&product.MediaURL, &product.CreatedAt, &product.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		list = append(list, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return list, nil
}

// Update replaces the mutable product fields.
func (p *Conf) Update(ctx context.Context, productID string, product Product) (Product, error) {
	const queryUpdate = `
		UPDATE products
		SET name = $2, description = $3, category = $4, price_cents = $5, points_price = $6, status = $7, media_url = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, category, price_cents, points_price, stripe_price_id, status, media_url, created_at, updated_at
	`
	var updated Product
	err := p.db.QueryRowContext(ctx, queryUpdate, productID, product.Name, product.Description,
		product.Category, product.PriceCents, product.PointsPrice, product.Status, product.MediaURL).Scan(
		&updated.ID, &updated.Name, &updated.Description, &updated.Category, &updated.PriceCents,
		&updated.PointsPrice, &updated.StripePriceID, &updated.Status, &updated.MediaURL,
		&updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("updating product %s: %w", productID, err)
	}
	return updated, nil
}

// Delete removes a product from the catalog.
func (p *Conf) Delete(ctx context.Context, productID string) error {
	const queryDelete = `DELETE FROM products WHERE id = $1`
	res, err := p.db.ExecContext(ctx, queryDelete, productID)
	if err != nil {
		return fmt.Errorf("deleting product %s: %w", productID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting product %s: %w", productID, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStripePriceID records the price id created on the Stripe side.
func (p *Conf) SetStripePriceID(ctx context.Context, productID, priceID string) error {
	const queryUpdate = `UPDATE products SET stripe_price_id = $2, updated_at = NOW() WHERE id = $1`
	if _, err := p.db.ExecContext(ctx, queryUpdate, productID, priceID); err != nil {
		return fmt.Errorf("setting stripe price id for product %s: %w", productID, err)
	}
	return nil
}

// SortClause maps user-supplied sort/order values onto the whitelisted SQL
// clause, defaulting to name ascending.
func SortClause(sort, order string) (string, string) {
	col, ok := sortColumns[sort]
	if !ok {
		col = "name"
	}
	if strings.EqualFold(order, "desc") {
		return col, "DESC"
	}
	return col, "ASC"
}
