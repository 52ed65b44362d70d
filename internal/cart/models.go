package cart

import "time"

// Item is one (user, product) row; the pair is unique, adds fold into the
// existing quantity.
type Item struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DetailedItem joins a cart row with the catalog fields checkout needs.
type DetailedItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	PriceCents  int    `json:"price_cents"`
	PointsPrice int    `json:"points_price"`
}

type Response struct {
	Items []DetailedItem `json:"items"`
}
