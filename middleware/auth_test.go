package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) *auth.Keys {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})

	keys, err := auth.NewKeys(privatePEM, publicPEM)
	require.NoError(t, err)
	return keys
}

func testRouter(t *testing.T, keys *auth.Keys, roles ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := NewMid(keys)
	require.NoError(t, err)

	whoami := func(c *gin.Context) {
		claims := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.Subject})
	}

	router := gin.New()
	group := router.Group("/")
	group.Use(m.Authentication())
	if len(roles) > 0 {
		group.GET("/whoami", m.Authorize(whoami, roles...))
	} else {
		group.GET("/whoami", whoami)
	}
	return router
}

func do(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticationRejectsMissingOrMalformedHeader(t *testing.T) {
	router := testRouter(t, testKeys(t))

	for _, header := range []string{"", "Bearer", "Basic abc123", "Bearer a b c"} {
		rec := do(router, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthenticationRejectsInvalidToken(t *testing.T) {
	router := testRouter(t, testKeys(t))

	rec := do(router, "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticationStoresClaims(t *testing.T) {
	keys := testKeys(t)
	router := testRouter(t, keys)

	token, err := keys.GenerateToken("user-1", []string{auth.RoleUser}, time.Hour)
	require.NoError(t, err)

	rec := do(router, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user-1")
}

func TestAuthorizeRoleGate(t *testing.T) {
	keys := testKeys(t)
	router := testRouter(t, keys, auth.RoleAdmin)

	userToken, err := keys.GenerateToken("user-1", []string{auth.RoleUser}, time.Hour)
	require.NoError(t, err)
	rec := do(router, "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken, err := keys.GenerateToken("admin-1", []string{auth.RoleUser, auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	rec = do(router, "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}
