package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/ledger"
	"storefront-service/internal/orders"
	"storefront-service/internal/stores/kafka"
	"storefront-service/internal/webhooks"
	"storefront-service/pkg/logkey"
)

// expiryGrace covers clock skew between Stripe's session expiry and ours.
const expiryGrace = 5 * time.Minute

// Finalize applies a completed checkout session exactly once. The
// webhook_events insert shares the transaction with the effects, so the
// unique constraint on the event id decides which of two concurrent
// deliveries wins; the loser sees webhooks.ErrDuplicateEvent and must treat
// the event as already handled.
//
// Returns whether the effects were newly applied.
func (c *Conf) Finalize(ctx context.Context, cs CompletedSession) (bool, error) {
	var applied, stale bool
	var events []kafkaEvent

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		if err := webhooks.InsertTx(ctx, tx, cs.EventID, cs.EventType, webhooks.StatusSuccess); err != nil {
			return err
		}

		switch cs.CheckoutType {
		case TypeOrder:
			var err error
			applied, stale, events, err = c.finalizeOrder(ctx, tx, cs)
			if err != nil {
				return err
			}
			if stale {
				return webhooks.SetStatusTx(ctx, tx, cs.EventID, webhooks.StatusRejected)
			}
			return nil
		case TypePointsPackage:
			var err error
			applied, events, err = c.finalizePointsPackage(ctx, tx, cs)
			return err
		default:
			return errors.New("unknown checkout type in session metadata")
		}
	})
	if err != nil {
		return false, err
	}
	if stale {
		// The failed mark and the rejected dedup row committed; the caller
		// only needs to know the completion was not applied.
		return false, ErrStaleSession
	}

	// Kafka events only go out once the transaction committed; a failed
	// produce is logged, never unwound.
	for _, ev := range events {
		if perr := c.produce(ev); perr != nil {
			slog.Error("failed to produce event", slog.String("topic", ev.topic), slog.String(logkey.ERROR, perr.Error()))
		}
	}

	return applied, nil
}

func (c *Conf) finalizeOrder(ctx context.Context, tx *sql.Tx, cs CompletedSession) (applied, stale bool, events []kafkaEvent, err error) {
	order, err := orders.GetTx(ctx, tx, cs.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			// The order vanished or never committed; nothing to apply.
			slog.Warn("webhook for unknown order", slog.String(logkey.OrderID, cs.OrderID), slog.String(logkey.EventID, cs.EventID))
			return false, false, nil, nil
		}
		return false, false, nil, err
	}

	if order.Status != orders.StatusPending {
		// Already finalized through another delivery or path.
		slog.Warn("webhook for already-finalized order",
			slog.String(logkey.OrderID, cs.OrderID), slog.String("status", string(order.Status)))
		return false, false, nil, nil
	}

	if time.Since(order.CreatedAt) > SessionTTL+expiryGrace {
		if err := orders.MarkFailedTx(ctx, tx, order.ID); err != nil {
			return false, false, nil, err
		}
		return false, true, nil, nil
	}

	if err := orders.MarkCompletedTx(ctx, tx, order.ID, cs.PaymentIntentID); err != nil {
		return false, false, nil, err
	}
	if err := cart.DeleteForUserTx(ctx, tx, order.UserID, cs.ProductIDs()); err != nil {
		return false, false, nil, err
	}

	for _, item := range cs.Items {
		payload, err := json.Marshal(kafka.OrderPaidEvent{
			OrderId:   order.ID,
			UserId:    order.UserID,
			ProductId: item.ProductID,
			Quantity:  item.Quantity,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return false, false, nil, err
		}
		events = append(events, kafkaEvent{topic: kafka.TopicOrderPaid, key: []byte(order.ID), value: payload})
	}

	return true, false, events, nil
}

func (c *Conf) finalizePointsPackage(ctx context.Context, tx *sql.Tx, cs CompletedSession) (bool, []kafkaEvent, error) {
	newBalance, err := ledger.CreditTx(ctx, tx, cs.UserID, cs.PackagePoints,
		"points package "+cs.PackageID, nil)
	if err != nil {
		return false, nil, err
	}

	payload, err := json.Marshal(kafka.PointsCreditedEvent{
		UserId:     cs.UserID,
		Points:     cs.PackagePoints,
		NewBalance: newBalance,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return false, nil, err
	}

	return true, []kafkaEvent{{topic: kafka.TopicPointsCredited, key: []byte(cs.UserID), value: payload}}, nil
}

type kafkaEvent struct {
	topic string
	key   []byte
	value []byte
}

func (c *Conf) produce(ev kafkaEvent) error {
	if c.producer == nil {
		return nil
	}
	return c.producer.ProduceMessage(ev.topic, ev.key, ev.value)
}
