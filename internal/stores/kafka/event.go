package kafka

import "time"

const (
	TopicOrderPaid      = `storefront.order-paid`
	TopicPointsCredited = `storefront.points-credited`
	TopicAccountCreated = `user-service.account-created`

	ConsumerGroup = `storefront-service`
)

// OrderPaidEvent is emitted per line item once a card order is confirmed by
// the payment webhook.
type OrderPaidEvent struct {
	OrderId   string    `json:"order_id"`
	UserId    string    `json:"user_id"`
	ProductId string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// PointsCreditedEvent is emitted when a points package purchase lands.
type PointsCreditedEvent struct {
	UserId     string    `json:"user_id"`
	Points     int       `json:"points"`
	NewBalance int       `json:"new_balance"`
	CreatedAt  time.Time `json:"created_at"`
}

// AccountCreatedEvent is consumed from the user service to bootstrap a
// profile with its welcome points grant.
type AccountCreatedEvent struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
