package products

import (
	"context"
	"fmt"
	"os"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/price"
	stripeproduct "github.com/stripe/stripe-go/v81/product"
)

// CreateStripePrice mirrors a catalog product into Stripe and stores the
// resulting price id on the row. Runs best-effort from a goroutine after
// product creation; card checkout requires the price id to exist.
func (p *Conf) CreateStripePrice(ctx context.Context, product Product) error {
	sKey := os.Getenv("STRIPE_SECRET_KEY")
	if sKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is not set")
	}
	stripe.Key = sKey

	productParams := &stripe.ProductParams{
		Name:        stripe.String(product.Name),
		Description: stripe.String(product.Description),
		Metadata: map[string]string{
			"product_id": product.ID,
		},
	}
	stripeProduct, err := stripeproduct.New(productParams)
	if err != nil {
		return fmt.Errorf("creating stripe product: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(stripeProduct.ID),
		UnitAmount: stripe.Int64(int64(product.PriceCents)),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
	}
	stripePrice, err := price.New(priceParams)
	if err != nil {
		return fmt.Errorf("creating stripe price: %w", err)
	}

	return p.SetStripePriceID(ctx, product.ID, stripePrice.ID)
}
