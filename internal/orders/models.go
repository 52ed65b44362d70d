package orders

import "time"

const (
	PaymentMethodCard   = "card"
	PaymentMethodPoints = "points"
)

// Order is one checkout attempt. Only the status (and the stripe payment id
// recorded alongside it) changes after creation.
type Order struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TotalCents      int64     `json:"total_cents"`
	TotalPoints     int       `json:"total_points"`
	PaymentMethod   string    `json:"payment_method"`
	Status          Status    `json:"status"`
	StripeSessionID string    `json:"stripe_session_id,omitempty"`
	StripePaymentID string    `json:"stripe_payment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Item snapshots a product at purchase time so later catalog edits never
// alter historical orders.
type Item struct {
	ID          int64  `json:"id"`
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	PriceCents  int    `json:"price_cents"`
	PointsPrice int    `json:"points_price"`
}
