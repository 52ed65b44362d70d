// Package checkout converts a cart (or a points package selection) into
// either a directly-completed points order or a pending order plus a hosted
// Stripe session whose completion arrives through the payment webhook.
package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/ledger"
	"storefront-service/internal/orders"
	"storefront-service/internal/profiles"
	"storefront-service/internal/products"
	"storefront-service/pkg/logkey"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
)

// SessionTTL is how long a hosted checkout session stays redeemable. Pending
// orders older than this are treated as abandoned.
const SessionTTL = 30 * time.Minute

// Producer is the slice of the kafka producer the orchestrator uses for
// post-commit domain events.
type Producer interface {
	ProduceMessage(topic string, key, value []byte) error
}

type Conf struct {
	db       *sql.DB
	products *products.Conf
	profiles *profiles.Conf
	cart     *cart.Conf
	sessions SessionCreator
	producer Producer
}

func NewConf(db *sql.DB, p *products.Conf, pr *profiles.Conf, c *cart.Conf, sessions SessionCreator, producer Producer) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session creator is nil")
	}
	return &Conf{db: db, products: p, profiles: pr, cart: c, sessions: sessions, producer: producer}, nil
}

// Checkout runs one checkout attempt for the user. The item list is always
// re-priced from the catalog; whatever amounts the client believes it is
// paying are irrelevant.
func (c *Conf) Checkout(ctx context.Context, userID string, req Request, opts Options) (Result, error) {
	profile, err := c.profiles.GetByID(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if opts.Discrete && !profile.AgeVerified {
		return Result{}, ErrAgeVerificationRequired
	}

	items, err := c.resolveItems(ctx, userID, req.Items)
	if err != nil {
		return Result{}, err
	}

	switch req.PaymentMethod {
	case PaymentMethodPoints:
		return c.checkoutWithPoints(ctx, userID, items)
	case PaymentMethodCard:
		return c.checkoutWithCard(ctx, profile, items, opts)
	default:
		return Result{}, fmt.Errorf("unknown payment method %q", req.PaymentMethod)
	}
}

// resolveItems turns the request into authoritatively-priced line items:
// either the whole cart, or the named products re-read from the catalog.
func (c *Conf) resolveItems(ctx context.Context, userID string, reqItems []RequestItem) ([]cart.DetailedItem, error) {
	if len(reqItems) == 0 {
		resp, err := c.cart.GetDetailedItems(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			return nil, ErrEmptyCart
		}
		return resp.Items, nil
	}

	ids := make([]string, 0, len(reqItems))
	for _, item := range reqItems {
		ids = append(ids, item.ProductID)
	}
	catalog, err := c.products.GetApprovedByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]cart.DetailedItem, 0, len(reqItems))
	for _, item := range reqItems {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, item.ProductID)
		}
		items = append(items, cart.DetailedItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			PriceCents:  product.PriceCents,
			PointsPrice: product.PointsPrice,
		})
	}
	return items, nil
}

// checkoutWithPoints creates the completed order, debits the ledger and
// clears the purchased cart rows in one transaction. Insufficient balance
// rolls the whole thing back.
func (c *Conf) checkoutWithPoints(ctx context.Context, userID string, items []cart.DetailedItem) (Result, error) {
	totalCents, totalPoints := computeTotals(items)
	if totalPoints <= 0 {
		// Catalog entries may carry no points price at all.
		return Result{}, ErrNoPointsPrice
	}
	orderID := uuid.NewString()

	order := orders.Order{
		ID:            orderID,
		UserID:        userID,
		TotalCents:    totalCents,
		TotalPoints:   totalPoints,
		PaymentMethod: orders.PaymentMethodPoints,
		Status:        orders.StatusCompleted,
	}

	var newBalance int
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if err := orders.CreateTx(ctx, tx, order, orderItems(orderID, items)); err != nil {
			return err
		}
		var err error
		newBalance, err = ledger.DebitTx(ctx, tx, userID, totalPoints,
			fmt.Sprintf("order %s", orderID), &orderID)
		if err != nil {
			return err
		}
		return cart.DeleteForUserTx(ctx, tx, userID, productIDs(items))
	})
	if err != nil {
		return Result{}, err
	}

	return Result{OrderID: orderID, NewBalance: newBalance, Completed: true}, nil
}

// checkoutWithCard creates the Stripe session first; only once the provider
// confirmed the session does a pending order get written locally. The cart is
// left untouched until the webhook confirms payment.
func (c *Conf) checkoutWithCard(ctx context.Context, profile profiles.Profile, items []cart.DetailedItem, opts Options) (Result, error) {
	totalCents, totalPoints := computeTotals(items)
	orderID := uuid.NewString()

	params, err := buildSessionParams(orderID, profile, items, opts)
	if err != nil {
		return Result{}, err
	}

	sess, err := c.sessions.Create(params)
	if err != nil {
		return Result{}, fmt.Errorf("creating checkout session: %w", err)
	}

	order := orders.Order{
		ID:              orderID,
		UserID:          profile.ID,
		TotalCents:      totalCents,
		TotalPoints:     totalPoints,
		PaymentMethod:   orders.PaymentMethodCard,
		Status:          orders.StatusPending,
		StripeSessionID: sess.ID,
	}
	if err := c.withTx(ctx, func(tx *sql.Tx) error {
		return orders.CreateTx(ctx, tx, order, orderItems(orderID, items))
	}); err != nil {
		// The session exists remotely but the order does not; it expires on
		// its own and the webhook treats it as unknown.
		slog.Error("order creation failed after session creation",
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		return Result{}, err
	}

	return Result{OrderID: orderID, URL: sess.URL}, nil
}

// buildSessionParams assembles the hosted-session request. Amounts come from
// the catalog rows, the metadata carries everything the webhook needs to
// finalize without re-trusting the client.
func buildSessionParams(orderID string, profile profiles.Profile, items []cart.DetailedItem, opts Options) (*stripe.CheckoutSessionParams, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	metaItems := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(int64(item.PriceCents)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.ProductName),
				},
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
		metaItems = append(metaItems, map[string]interface{}{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
			"price":      item.PriceCents,
		})
	}

	metaJSON, err := json.Marshal(metaItems)
	if err != nil {
		return nil, fmt.Errorf("marshalling line item metadata: %w", err)
	}

	metadata := map[string]string{
		"checkout_type": TypeOrder,
		"order_id":      orderID,
		"user_id":       profile.ID,
		"products":      string(metaJSON),
	}

	params := &stripe.CheckoutSessionParams{
		SubmitType: stripe.String("pay"),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		LineItems:  lineItems,
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		ExpiresAt:  stripe.Int64(time.Now().Add(SessionTTL).Unix()),
		SuccessURL: stripe.String(os.Getenv("CHECKOUT_SUCCESS_URL")),
		CancelURL:  stripe.String(os.Getenv("CHECKOUT_CANCEL_URL")),
		Metadata:   metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if profile.StripeCustomerID != nil && *profile.StripeCustomerID != "" {
		params.Customer = stripe.String(*profile.StripeCustomerID)
	}
	if opts.Discrete {
		descriptor := opts.StatementDescriptor
		if descriptor == "" {
			descriptor = "WEB MEDIA SERVICES"
		}
		params.PaymentIntentData.StatementDescriptor = stripe.String(descriptor)
	}

	return params, nil
}

// PurchasePointsPackage starts a card-only purchase of a points bundle. The
// ledger credit happens in the webhook finalizer.
func (c *Conf) PurchasePointsPackage(ctx context.Context, userID, packageID string) (Result, error) {
	profile, err := c.profiles.GetByID(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	pkg, err := c.getPackage(ctx, packageID)
	if err != nil {
		return Result{}, err
	}

	params := &stripe.CheckoutSessionParams{
		SubmitType: stripe.String("pay"),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		ExpiresAt:  stripe.Int64(time.Now().Add(SessionTTL).Unix()),
		SuccessURL: stripe.String(os.Getenv("CHECKOUT_SUCCESS_URL")),
		CancelURL:  stripe.String(os.Getenv("CHECKOUT_CANCEL_URL")),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(int64(pkg.PriceCents)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("%s points package", pkg.Name)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		Metadata: map[string]string{
			"checkout_type": TypePointsPackage,
			"user_id":       userID,
			"package_id":    pkg.ID,
			"points":        fmt.Sprintf("%d", pkg.Points),
		},
	}
	if profile.StripeCustomerID != nil && *profile.StripeCustomerID != "" {
		params.Customer = stripe.String(*profile.StripeCustomerID)
	}

	sess, err := c.sessions.Create(params)
	if err != nil {
		return Result{}, fmt.Errorf("creating checkout session: %w", err)
	}

	return Result{URL: sess.URL}, nil
}

func (c *Conf) getPackage(ctx context.Context, packageID string) (PointsPackage, error) {
	const queryGet = `
		SELECT id, name, points, price_cents, stripe_price_id, active
		FROM points_packages
		WHERE id = $1 AND active = TRUE
	`
	var pkg PointsPackage
	err := c.db.QueryRowContext(ctx, queryGet, packageID).Scan(&pkg.ID, &pkg.Name,
		&pkg.Points, &pkg.PriceCents, &pkg.StripePriceID, &pkg.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PointsPackage{}, ErrPackageNotFound
		}
		return PointsPackage{}, fmt.Errorf("querying points package %s: %w", packageID, err)
	}
	return pkg, nil
}

// ListPackages returns the active points packages.
func (c *Conf) ListPackages(ctx context.Context) ([]PointsPackage, error) {
	const queryList = `
		SELECT id, name, points, price_cents, stripe_price_id, active
		FROM points_packages
		WHERE active = TRUE
		ORDER BY points
	`
	rows, err := c.db.QueryContext(ctx, queryList)
	if err != nil {
		return nil, fmt.Errorf("querying points packages: %w", err)
	}
	defer rows.Close()

	var list []PointsPackage
	for rows.Next() {
		var pkg PointsPackage
		if err := rows.Scan(&pkg.ID, &pkg.Name, &pkg.Points, &pkg.PriceCents, &pkg.StripePriceID, &pkg.Active); err != nil {
			return nil, fmt.Errorf("scanning points package: %w", err)
		}
		list = append(list, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points packages: %w", err)
	}
	return list, nil
}

func computeTotals(items []cart.DetailedItem) (int64, int) {
	var cents int64
	var points int
	for _, item := range items {
		cents += int64(item.PriceCents) * int64(item.Quantity)
		points += item.PointsPrice * item.Quantity
	}
	return cents, points
}

func orderItems(orderID string, items []cart.DetailedItem) []orders.Item {
	out := make([]orders.Item, 0, len(items))
	for _, item := range items {
		out = append(out, orders.Item{
			OrderID:     orderID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			PriceCents:  item.PriceCents,
			PointsPrice: item.PointsPrice,
		})
	}
	return out
}

func productIDs(items []cart.DetailedItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
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
