package handlers

import (
	"context"
	"net/http"
	"os"

	"storefront-service/internal/auth"
	"storefront-service/internal/cache"
	"storefront-service/internal/cart"
	"storefront-service/internal/checkout"
	"storefront-service/internal/ledger"
	"storefront-service/internal/orders"
	"storefront-service/internal/products"
	"storefront-service/internal/profiles"
	"storefront-service/internal/webhooks"
	"storefront-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// checkoutOrchestrator is the slice of the checkout package the handlers
// call. *checkout.Conf is the production implementation.
type checkoutOrchestrator interface {
	Checkout(ctx context.Context, userID string, req checkout.Request, opts checkout.Options) (checkout.Result, error)
	PurchasePointsPackage(ctx context.Context, userID, packageID string) (checkout.Result, error)
	ListPackages(ctx context.Context) ([]checkout.PointsPackage, error)
	Finalize(ctx context.Context, cs checkout.CompletedSession) (bool, error)
}

// webhookLedger is the dedup store surface the webhook handler reads and
// writes. *webhooks.Conf is the production implementation.
type webhookLedger interface {
	Insert(ctx context.Context, stripeEventID, eventType, status string) error
	Seen(ctx context.Context, stripeEventID string) (bool, error)
}

type Handler struct {
	validate *validator.Validate
	products *products.Conf
	cart     *cart.Conf
	profiles *profiles.Conf
	ledger   *ledger.Conf
	orders   *orders.Conf
	webhooks webhookLedger
	checkout checkoutOrchestrator
	cache    *cache.Conf
}

// Deps bundles the store configurations the handlers work against. The cache
// may be nil; the catalog then reads straight from the database.
type Deps struct {
	Products *products.Conf
	Cart     *cart.Conf
	Profiles *profiles.Conf
	Ledger   *ledger.Conf
	Orders   *orders.Conf
	Webhooks *webhooks.Conf
	Checkout *checkout.Conf
	Cache    *cache.Conf
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		validate: validator.New(),
		products: d.Products,
		cart:     d.Cart,
		profiles: d.Profiles,
		ledger:   d.Ledger,
		orders:   d.Orders,
		webhooks: d.Webhooks,
		checkout: d.Checkout,
		cache:    d.Cache,
	}
}

func API(endpointPrefix string, keys *auth.Keys, d Deps) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	m, err := middleware.NewMid(keys)
	if err != nil {
		panic(err)
	}

	h := NewHandler(d)
	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/ping", HealthCheck)

	v1 := r.Group(endpointPrefix)
	{
		v1.POST("/webhooks/stripe", h.StripeWebhook)
		v1.GET("/products", h.ListProducts)
		v1.GET("/products/:id", h.GetProduct)
		v1.GET("/points/packages", h.ListPointsPackages)
	}

	authed := r.Group(endpointPrefix)
	{
		authed.Use(m.Authentication())
		authed.POST("/products", m.Authorize(h.CreateProduct, auth.RoleAdmin))
		authed.PUT("/products/:id", m.Authorize(h.UpdateProduct, auth.RoleAdmin))
		authed.DELETE("/products/:id", m.Authorize(h.DeleteProduct, auth.RoleAdmin))

		authed.POST("/cart/items", m.Authorize(h.AddToCart, auth.RoleUser))
		authed.PUT("/cart/items/:productID", m.Authorize(h.UpdateCartItem, auth.RoleUser))
		authed.DELETE("/cart/items/:productID", m.Authorize(h.RemoveCartItem, auth.RoleUser))
		authed.GET("/cart/items", m.Authorize(h.GetCartItems, auth.RoleUser))

		authed.GET("/profile", m.Authorize(h.GetProfile, auth.RoleUser))
		authed.POST("/profile/age-verification", m.Authorize(h.VerifyAge, auth.RoleUser))

		authed.POST("/checkout", m.Authorize(h.Checkout, auth.RoleUser))
		authed.POST("/checkout/discrete", m.Authorize(h.CheckoutDiscrete, auth.RoleUser))
		authed.POST("/points/purchase", m.Authorize(h.PurchasePointsPackage, auth.RoleUser))
		authed.GET("/points/balance", m.Authorize(h.PointsBalance, auth.RoleUser))
		authed.GET("/points/transactions", m.Authorize(h.PointsTransactions, auth.RoleUser))
		authed.GET("/orders", m.Authorize(h.ListOrders, auth.RoleUser))
	}

	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}
