package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	PaymentMethodCard   = "card"
	PaymentMethodPoints = "points"

	// checkout_type metadata values carried on the Stripe session.
	TypeOrder         = "order"
	TypePointsPackage = "points_package"
)

var (
	// ErrEmptyCart reports a checkout with nothing purchasable in it.
	ErrEmptyCart = errors.New("no purchasable items in checkout")
	// ErrUnknownProduct reports a requested product that is missing or not
	// approved for sale.
	ErrUnknownProduct = errors.New("unknown or unavailable product")
	// ErrAgeVerificationRequired gates the discrete checkout surface.
	ErrAgeVerificationRequired = errors.New("age verification required")
	// ErrNoPointsPrice reports a points checkout whose items sum to zero
	// points and so cannot be bought with points.
	ErrNoPointsPrice = errors.New("items cannot be paid with points")
	// ErrPackageNotFound reports an unknown or inactive points package.
	ErrPackageNotFound = errors.New("points package not found")
	// ErrStaleSession reports a completion arriving after the session expiry.
	ErrStaleSession = errors.New("checkout session expired")
)

// Request is the checkout body. Items are optional; an empty list means the
// whole cart. Client-supplied prices are never accepted anywhere in it.
type Request struct {
	Items         []RequestItem `json:"items" validate:"omitempty,dive"`
	PaymentMethod string        `json:"payment_method" validate:"required,oneof=card points"`
}

type RequestItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// Options carries the discrete-storefront variations of the card path.
type Options struct {
	Discrete            bool
	StatementDescriptor string
}

// Result is what the handler returns to the client: a session URL for card
// payments, or the completed order and new balance for points.
type Result struct {
	OrderID    string `json:"order_id"`
	URL        string `json:"url,omitempty"`
	NewBalance int    `json:"new_balance,omitempty"`
	Completed  bool   `json:"completed"`
}

// PointsPackage is a purchasable bundle of points.
type PointsPackage struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Points        int    `json:"points"`
	PriceCents    int    `json:"price_cents"`
	StripePriceID string `json:"stripe_price_id"`
	Active        bool   `json:"active"`
}

// CompletedSession is the typed form of the session metadata the webhook
// receives. Metadata values arrive stringly; parsing converts them once at
// the boundary.
type CompletedSession struct {
	EventID         string
	EventType       string
	CheckoutType    string
	OrderID         string
	UserID          string
	PackageID       string
	PackagePoints   int
	PaymentIntentID string
	Items           []SessionItem
}

// SessionItem is one line item as embedded in the session metadata.
type SessionItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ProductIDs returns the product ids of the session's line items.
func (cs CompletedSession) ProductIDs() []string {
	ids := make([]string, 0, len(cs.Items))
	for _, item := range cs.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ParseSessionMetadata validates and converts the metadata attached to a
// completed checkout session.
func ParseSessionMetadata(md map[string]string) (CompletedSession, error) {
	var cs CompletedSession

	cs.CheckoutType = md["checkout_type"]
	cs.UserID = md["user_id"]
	if cs.UserID == "" {
		return CompletedSession{}, fmt.Errorf("session metadata missing user_id")
	}

	switch cs.CheckoutType {
	case TypeOrder:
		cs.OrderID = md["order_id"]
		if cs.OrderID == "" {
			return CompletedSession{}, fmt.Errorf("session metadata missing order_id")
		}
		if raw := md["products"]; raw != "" {
			if err := json.Unmarshal([]byte(raw), &cs.Items); err != nil {
				return CompletedSession{}, fmt.Errorf("session metadata has invalid products payload: %w", err)
			}
		}
	case TypePointsPackage:
		cs.PackageID = md["package_id"]
		if cs.PackageID == "" {
			return CompletedSession{}, fmt.Errorf("session metadata missing package_id")
		}
		points, err := strconv.Atoi(md["points"])
		if err != nil || points <= 0 {
			return CompletedSession{}, fmt.Errorf("session metadata has invalid points value %q", md["points"])
		}
		cs.PackagePoints = points
	default:
		return CompletedSession{}, fmt.Errorf("unknown checkout_type %q", cs.CheckoutType)
	}

	return cs, nil
}
