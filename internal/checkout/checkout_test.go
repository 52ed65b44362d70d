package checkout

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/profiles"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
)

var testItems = []cart.DetailedItem{
	{ProductID: "p1", ProductName: "Sunset Render", Quantity: 2, PriceCents: 499, PointsPrice: 50},
	{ProductID: "p2", ProductName: "Neon City", Quantity: 1, PriceCents: 1299, PointsPrice: 120},
}

func TestComputeTotals(t *testing.T) {
	cents, points := computeTotals(testItems)
	assert.Equal(t, int64(2*499+1299), cents)
	assert.Equal(t, 2*50+120, points)
}

func TestOrderItemsSnapshotCatalogPrices(t *testing.T) {
	items := orderItems("ord-1", testItems)
	require.Len(t, items, 2)
	assert.Equal(t, "ord-1", items[0].OrderID)
	assert.Equal(t, 499, items[0].PriceCents)
	assert.Equal(t, 50, items[0].PointsPrice)
	assert.Equal(t, "Sunset Render", items[0].ProductName)
}

func TestBuildSessionParams(t *testing.T) {
	profile := profiles.Profile{ID: "user-1"}

	params, err := buildSessionParams("ord-1", profile, testItems, Options{})
	require.NoError(t, err)

	require.Len(t, params.LineItems, 2)
	// Amounts come from the catalog rows, not from anything client-supplied.
	assert.Equal(t, int64(499), *params.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, int64(2), *params.LineItems[0].Quantity)

	assert.Equal(t, "order", params.Metadata["checkout_type"])
	assert.Equal(t, "ord-1", params.Metadata["order_id"])
	assert.Equal(t, "user-1", params.Metadata["user_id"])
	assert.NotEmpty(t, params.Metadata["products"])

	// The webhook finalizer must be able to rebuild the session from the
	// metadata alone.
	cs, err := ParseSessionMetadata(params.Metadata)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, cs.ProductIDs())

	require.NotNil(t, params.ExpiresAt)
	expiry := time.Unix(*params.ExpiresAt, 0)
	assert.WithinDuration(t, time.Now().Add(SessionTTL), expiry, time.Minute)

	assert.Nil(t, params.PaymentIntentData.StatementDescriptor)
}

func TestBuildSessionParamsDiscreteDescriptor(t *testing.T) {
	profile := profiles.Profile{ID: "user-1", AgeVerified: true}

	params, err := buildSessionParams("ord-1", profile, testItems, Options{Discrete: true})
	require.NoError(t, err)
	require.NotNil(t, params.PaymentIntentData.StatementDescriptor)
	assert.Equal(t, "WEB MEDIA SERVICES", *params.PaymentIntentData.StatementDescriptor)

	params, err = buildSessionParams("ord-1", profile, testItems, Options{Discrete: true, StatementDescriptor: "ACME BILLING"})
	require.NoError(t, err)
	assert.Equal(t, "ACME BILLING", *params.PaymentIntentData.StatementDescriptor)
}

// Items with no points price must be rejected before the transaction opens;
// the untouched handle would panic otherwise.
func TestPointsCheckoutRejectsZeroPointItems(t *testing.T) {
	c := &Conf{db: &sql.DB{}}
	items := []cart.DetailedItem{
		{ProductID: "p1", ProductName: "Card Only", Quantity: 2, PriceCents: 499, PointsPrice: 0},
	}

	_, err := c.checkoutWithPoints(context.Background(), "user-1", items)
	require.ErrorIs(t, err, ErrNoPointsPrice)
}

type failingSessions struct{}

func (failingSessions) Create(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return nil, errors.New("stripe unreachable")
}

// A provider failure must surface before any local row is written: the card
// path may not touch the database until the session exists. The untouched
// handle below would panic if it did.
func TestCardCheckoutProviderFailureWritesNothing(t *testing.T) {
	c := &Conf{db: &sql.DB{}, sessions: failingSessions{}}

	_, err := c.checkoutWithCard(context.Background(), profiles.Profile{ID: "user-1"}, testItems, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating checkout session")
}
