package ledger

import "time"

const (
	TypePurchase = "purchase" // credit, points bought or granted
	TypeSpend    = "spend"    // debit, points redeemed against an order
)

// Transaction is one append-only ledger row. The running balance on the
// profile is always the sum of these amounts.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      int       `json:"amount"` // signed; negative for spend
	Type        string    `json:"type"`
	Description string    `json:"description"`
	OrderID     *string   `json:"order_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
