package products

import "time"

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Product is a catalog entry for one piece of generated media. Prices live in
// cents and points; checkout always reads them from here, never from the
// client.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name" validate:"required"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	PriceCents    int       `json:"price_cents" validate:"min=0"`
	PointsPrice   int       `json:"points_price" validate:"min=0"`
	StripePriceID string    `json:"stripe_price_id"`
	Status        string    `json:"status"`
	MediaURL      string    `json:"media_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewProduct is the creation payload.
type NewProduct struct {
	Name        string `json:"name" validate:"required,min=3"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required"`
	PriceCents  int    `json:"price_cents" validate:"required,min=1"`
	PointsPrice int    `json:"points_price" validate:"required,min=1"`
	MediaURL    string `json:"media_url" validate:"required,url"`
}

// ListFilter captures the catalog query surface: filters, paging and sorting.
type ListFilter struct {
	Name     string
	Category string
	Limit    int
	Offset   int
	Sort     string
	Order    string
}
