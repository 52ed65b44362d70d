package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"storefront-service/internal/checkout"
	"storefront-service/internal/orders"
	"storefront-service/internal/webhooks"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// StripeWebhook receives async payment events. Signature failures are 400;
// once the event id has been dedup-checked the response is 200 whether the
// effects were newly applied, skipped as duplicates, or rejected as stale.
func (h *Handler) StripeWebhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	const MaxBodyBytes = int64(65536)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if secret == "" {
		slog.Error("stripe webhook secret not configured", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Webhook not configured"})
		return
	}

	// Stripe keeps delivering events pinned to the API version the endpoint
	// was created with, which may trail the SDK's pinned version.
	event, err := webhook.ConstructEventWithOptions(payload, c.Request.Header.Get("Stripe-Signature"), secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		slog.Error("webhook signature verification failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleSessionCompleted(c, traceId, event)
	case "checkout.session.expired":
		h.handleSessionExpired(c, traceId, event)
	default:
		slog.Info("unhandled event type", slog.String(logkey.TraceID, traceId), slog.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"message": "Event type not handled", "event": event.Type})
	}
}

func (h *Handler) handleSessionCompleted(c *gin.Context, traceId string, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.Error("failed to unmarshal checkout session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
		return
	}

	cs, err := checkout.ParseSessionMetadata(session.Metadata)
	if err != nil {
		slog.Error("invalid session metadata", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.EventID, event.ID), slog.String(logkey.ERROR, err.Error()))
		h.recordWebhookFailure(c, traceId, event)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	cs.EventID = event.ID
	cs.EventType = string(event.Type)
	if session.PaymentIntent != nil {
		cs.PaymentIntentID = session.PaymentIntent.ID
	}

	// Cheap pre-check for redeliveries; the insert conflict inside Finalize
	// remains the authoritative gate for concurrent deliveries.
	if seen, err := h.webhooks.Seen(c.Request.Context(), event.ID); err == nil && seen {
		slog.Warn("duplicate webhook delivery", slog.String(logkey.TraceID, traceId), slog.String(logkey.EventID, event.ID))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	applied, err := h.checkout.Finalize(c.Request.Context(), cs)
	switch {
	case err == nil:
		if applied {
			slog.Info("webhook effects applied", slog.String(logkey.TraceID, traceId), slog.String(logkey.EventID, event.ID))
			h.recordStripeCustomer(c, traceId, cs.UserID, session)
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, webhooks.ErrDuplicateEvent):
		// Distinguished in logs only; the caller sees the same success shape.
		slog.Warn("duplicate webhook delivery", slog.String(logkey.TraceID, traceId), slog.String(logkey.EventID, event.ID))
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, checkout.ErrStaleSession):
		slog.Warn("stale session completion rejected", slog.String(logkey.TraceID, traceId), slog.String(logkey.EventID, event.ID))
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		slog.Error("webhook finalize failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.EventID, event.ID), slog.String(logkey.ERROR, err.Error()))
		h.recordWebhookFailure(c, traceId, event)
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func (h *Handler) handleSessionExpired(c *gin.Context, traceId string, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
		return
	}

	orderID := session.Metadata["order_id"]
	if orderID == "" {
		// Expiry events for sessions we created always carry the order id,
		// but fall back to the session lookup in case the metadata was lost.
		if order, err := h.orders.GetByStripeSession(c.Request.Context(), session.ID); err == nil {
			orderID = order.ID
		}
	}
	if orderID != "" {
		if err := h.orders.MarkFailed(c.Request.Context(), orderID); err != nil && !errors.Is(err, orders.ErrInvalidTransition) {
			slog.Error("failed to mark expired order", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		}
	}

	if err := h.webhooks.Insert(c.Request.Context(), event.ID, string(event.Type), webhooks.StatusSuccess); err != nil &&
		!errors.Is(err, webhooks.ErrDuplicateEvent) {
		slog.Error("failed to record webhook event", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// recordStripeCustomer stores the customer Stripe attached to the session so
// later checkouts reuse it instead of creating a fresh customer each time.
func (h *Handler) recordStripeCustomer(c *gin.Context, traceId, userID string, session stripe.CheckoutSession) {
	if session.Customer == nil || session.Customer.ID == "" {
		return
	}
	if err := h.profiles.SetStripeCustomerID(c.Request.Context(), userID, session.Customer.ID); err != nil {
		slog.Error("failed to record stripe customer", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, userID), slog.String(logkey.ERROR, err.Error()))
	}
}

// recordWebhookFailure writes the failure row for observability. A conflict
// means another delivery already recorded this event.
func (h *Handler) recordWebhookFailure(c *gin.Context, traceId string, event stripe.Event) {
	err := h.webhooks.Insert(c.Request.Context(), event.ID, string(event.Type), webhooks.StatusFailure)
	if err != nil && !errors.Is(err, webhooks.ErrDuplicateEvent) {
		slog.Error("failed to record webhook failure", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.EventID, event.ID), slog.String(logkey.ERROR, err.Error()))
	}
}
