package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T) (privatePEM, publicPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	return privatePEM, publicPEM
}

func TestTokenRoundTrip(t *testing.T) {
	privatePEM, publicPEM := testKeyPair(t)
	keys, err := NewKeys(privatePEM, publicPEM)
	require.NoError(t, err)

	token, err := keys.GenerateToken("user-1", []string{RoleUser, RoleAdmin}, time.Hour)
	require.NoError(t, err)

	claims, err := keys.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.True(t, claims.HasRole(RoleUser))
	assert.True(t, claims.HasRole(RoleAdmin))
	assert.False(t, claims.HasRole("AUDITOR"))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	privatePEM, publicPEM := testKeyPair(t)
	keys, err := NewKeys(privatePEM, publicPEM)
	require.NoError(t, err)

	token, err := keys.GenerateToken("user-1", []string{RoleUser}, -time.Minute)
	require.NoError(t, err)

	_, err = keys.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsForeignKey(t *testing.T) {
	privatePEM, publicPEM := testKeyPair(t)
	signer, err := NewKeys(privatePEM, publicPEM)
	require.NoError(t, err)

	_, otherPublicPEM := testKeyPair(t)
	verifier, err := NewKeys(nil, otherPublicPEM)
	require.NoError(t, err)

	token, err := signer.GenerateToken("user-1", []string{RoleUser}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
}

func TestGenerateTokenRequiresSignKey(t *testing.T) {
	_, publicPEM := testKeyPair(t)
	keys, err := NewKeys(nil, publicPEM)
	require.NoError(t, err)

	_, err = keys.GenerateToken("user-1", []string{RoleUser}, time.Hour)
	require.Error(t, err)
}

func TestNewKeysRequiresPublicKey(t *testing.T) {
	_, err := NewKeys(nil, nil)
	require.Error(t, err)
}
