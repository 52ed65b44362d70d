package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-service/internal/checkout"
	"storefront-service/internal/ledger"
	"storefront-service/internal/profiles"
	"storefront-service/internal/webhooks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds the Stripe-Signature header the webhook package expects:
// an HMAC-SHA256 of "<timestamp>.<payload>".
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookRequest(payload []byte, signature string) (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	if signature != "" {
		c.Request.Header.Set("Stripe-Signature", signature)
	}
	return rec, c
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)

	h := &Handler{}
	rec, c := webhookRequest([]byte(`{"id":"evt_1"}`), "")
	h.StripeWebhook(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	h := &Handler{}
	rec, c := webhookRequest(payload, signPayload(payload, "whsec_wrong_secret"))
	h.StripeWebhook(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStripeWebhookFailsWithoutSecret(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	h := &Handler{}
	rec, c := webhookRequest([]byte(`{"id":"evt_1"}`), "t=1,v1=deadbeef")
	h.StripeWebhook(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// A correctly signed event of a type we do not process is acknowledged so the
// provider stops redelivering it.
func TestStripeWebhookAcksUnhandledEventType(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)

	payload := []byte(`{"id":"evt_1","type":"payment_intent.created","data":{"object":{}}}`)
	h := &Handler{}
	rec, c := webhookRequest(payload, signPayload(payload, testWebhookSecret))
	h.StripeWebhook(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "not handled")
}

type fakeOrchestrator struct {
	finalized   []checkout.CompletedSession
	applied     bool
	finalizeErr error
}

func (f *fakeOrchestrator) Finalize(_ context.Context, cs checkout.CompletedSession) (bool, error) {
	f.finalized = append(f.finalized, cs)
	return f.applied, f.finalizeErr
}

func (f *fakeOrchestrator) Checkout(context.Context, string, checkout.Request, checkout.Options) (checkout.Result, error) {
	return checkout.Result{}, nil
}

func (f *fakeOrchestrator) PurchasePointsPackage(context.Context, string, string) (checkout.Result, error) {
	return checkout.Result{}, nil
}

func (f *fakeOrchestrator) ListPackages(context.Context) ([]checkout.PointsPackage, error) {
	return nil, nil
}

type fakeWebhookLedger struct {
	seen     bool
	inserted []string
}

func (f *fakeWebhookLedger) Insert(_ context.Context, stripeEventID, _, _ string) error {
	f.inserted = append(f.inserted, stripeEventID)
	return nil
}

func (f *fakeWebhookLedger) Seen(context.Context, string) (bool, error) {
	return f.seen, nil
}

func completedSessionPayload(eventID string) []byte {
	return []byte(`{
		"id": "` + eventID + `",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"metadata": {
				"checkout_type": "order",
				"order_id": "ord-1",
				"user_id": "user-1",
				"products": "[{\"product_id\":\"p1\",\"quantity\":2}]"
			}
		}}
	}`)
}

// A redelivered event id must be applied exactly once: the first delivery
// runs the finalizer, the second is acknowledged as a no-op with the same
// success shape.
func TestStripeWebhookDuplicateDeliveryAppliesOnce(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	payload := completedSessionPayload("evt_dup")

	orch := &fakeOrchestrator{applied: true}
	h := &Handler{checkout: orch, webhooks: &fakeWebhookLedger{}}

	rec, c := webhookRequest(payload, signPayload(payload, testWebhookSecret))
	h.StripeWebhook(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, orch.finalized, 1)
	assert.Equal(t, "evt_dup", orch.finalized[0].EventID)
	assert.Equal(t, "ord-1", orch.finalized[0].OrderID)
	assert.Equal(t, []string{"p1"}, orch.finalized[0].ProductIDs())

	// Redelivery loses the insert race inside the finalizer.
	orch.applied = false
	orch.finalizeErr = webhooks.ErrDuplicateEvent
	rec, c = webhookRequest(payload, signPayload(payload, testWebhookSecret))
	h.StripeWebhook(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "received")
	assert.Len(t, orch.finalized, 2)
}

// An event id the dedup ledger has already recorded never reaches the
// finalizer at all.
func TestStripeWebhookSeenPreCheckSkipsFinalizer(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	payload := completedSessionPayload("evt_seen")

	orch := &fakeOrchestrator{}
	h := &Handler{checkout: orch, webhooks: &fakeWebhookLedger{seen: true}}

	rec, c := webhookRequest(payload, signPayload(payload, testWebhookSecret))
	h.StripeWebhook(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, orch.finalized)
}

// Stale completions are acknowledged so the provider stops redelivering.
func TestStripeWebhookAcksStaleSession(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	payload := completedSessionPayload("evt_stale")

	orch := &fakeOrchestrator{finalizeErr: checkout.ErrStaleSession}
	h := &Handler{checkout: orch, webhooks: &fakeWebhookLedger{}}

	rec, c := webhookRequest(payload, signPayload(payload, testWebhookSecret))
	h.StripeWebhook(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteCheckoutErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "age verification", err: checkout.ErrAgeVerificationRequired, want: http.StatusForbidden},
		{name: "insufficient points", err: fmt.Errorf("debiting: %w", ledger.ErrInsufficientFunds), want: http.StatusBadRequest},
		{name: "empty cart", err: checkout.ErrEmptyCart, want: http.StatusBadRequest},
		{name: "no points price", err: checkout.ErrNoPointsPrice, want: http.StatusBadRequest},
		{name: "unknown product", err: fmt.Errorf("%w: p-9", checkout.ErrUnknownProduct), want: http.StatusBadRequest},
		{name: "missing profile", err: profiles.ErrNotFound, want: http.StatusUnauthorized},
		{name: "provider failure", err: errors.New("stripe unreachable"), want: http.StatusInternalServerError},
	}

	h := &Handler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodPost, "/checkout", nil)

			h.writeCheckoutError(c, "trace-1", "user-1", tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
