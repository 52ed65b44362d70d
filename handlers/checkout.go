package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"storefront-service/internal/auth"
	"storefront-service/internal/checkout"
	"storefront-service/internal/ledger"
	"storefront-service/internal/profiles"
	"storefront-service/pkg/ctxmanage"
	"storefront-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

// Checkout converts the user's cart (or an explicit item list) into an order.
// Points orders complete synchronously; card orders come back as a hosted
// session URL and complete through the webhook.
func (h *Handler) Checkout(c *gin.Context) {
	h.runCheckout(c, checkout.Options{})
}

// CheckoutDiscrete is the privacy-variant of the card path: it requires age
// verification and uses a neutral billing descriptor.
func (h *Handler) CheckoutDiscrete(c *gin.Context) {
	var opts struct {
		StatementDescriptor string `json:"statement_descriptor"`
	}
	// Descriptor override is optional; body errors surface in runCheckout.
	_ = c.ShouldBindBodyWithJSON(&opts)

	h.runCheckout(c, checkout.Options{
		Discrete:            true,
		StatementDescriptor: opts.StatementDescriptor,
	})
}

func (h *Handler) runCheckout(c *gin.Context, opts checkout.Options) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req checkout.Request
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		slog.Error("invalid checkout body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		slog.Error("checkout validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payment_method must be card or points and items must be valid"})
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), claims.Subject, req, opts)
	if err != nil {
		h.writeCheckoutError(c, traceId, claims.Subject, err)
		return
	}

	if result.Completed {
		slog.Info("points checkout completed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.OrderID, result.OrderID))
		c.JSON(http.StatusOK, gin.H{"success": true, "order_id": result.OrderID, "new_balance": result.NewBalance})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": result.URL, "order_id": result.OrderID})
}

func (h *Handler) PurchasePointsPackage(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		PackageID string `json:"package_id" validate:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "package_id must be a valid id"})
		return
	}

	result, err := h.checkout.PurchasePointsPackage(c.Request.Context(), claims.Subject, req.PackageID)
	if err != nil {
		if errors.Is(err, checkout.ErrPackageNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Points package not found"})
			return
		}
		h.writeCheckoutError(c, traceId, claims.Subject, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": result.URL})
}

func (h *Handler) ListPointsPackages(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	packages, err := h.checkout.ListPackages(c.Request.Context())
	if err != nil {
		slog.Error("error fetching points packages", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch points packages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"packages": packages})
}

// writeCheckoutError translates orchestrator failures into the error
// taxonomy. Business rejections are 4xx with nothing written; provider
// failures are 500 with nothing written.
func (h *Handler) writeCheckoutError(c *gin.Context, traceId, userId string, err error) {
	switch {
	case errors.Is(err, checkout.ErrAgeVerificationRequired):
		slog.Error("age verification required", slog.String(logkey.TraceID, traceId), slog.String(logkey.UserID, userId))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Age verification required"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		slog.Error("insufficient points", slog.String(logkey.TraceID, traceId), slog.String(logkey.UserID, userId))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "insufficient points"})
	case errors.Is(err, checkout.ErrEmptyCart):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, checkout.ErrNoPointsPrice):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Items cannot be paid with points"})
	case errors.Is(err, checkout.ErrUnknownProduct):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid product in cart"})
	case errors.Is(err, profiles.ErrNotFound), errors.Is(err, ledger.ErrProfileNotFound):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	default:
		slog.Error("checkout failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, userId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Checkout failed"})
	}
}
