// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTSessionIssuer_Validation(t *testing.T) {
	_, err := NewJWTSessionIssuer(nil)
	assert.Error(t, err)

	_, err = NewJWTSessionIssuer(&JWTSessionIssuerConfig{})
	assert.Error(t, err)

	_, err = NewJWTSessionIssuer(&JWTSessionIssuerConfig{SigningKey: "not a key"})
	assert.Error(t, err)
}

func TestJWTSessionIssuer_HMAC(t *testing.T) {
	ctx := context.Background()

	issuer, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{
		SigningKey: []byte("test-secret-key-with-enough-entropy"),
	})
	require.NoError(t, err)

	token, err := issuer.CreateSession(ctx, "user-123", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "go-passkey", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestJWTSessionIssuer_ECDSA(t *testing.T) {
	ctx := context.Background()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	issuer, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{SigningKey: key})
	require.NoError(t, err)

	token, err := issuer.CreateSession(ctx, "user-123", "alice")
	require.NoError(t, err)

	claims, err := issuer.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTSessionIssuer_Ed25519(t *testing.T) {
	ctx := context.Background()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	issuer, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{SigningKey: key})
	require.NoError(t, err)

	token, err := issuer.CreateSession(ctx, "user-123", "alice")
	require.NoError(t, err)

	claims, err := issuer.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestJWTSessionIssuer_CustomClaims(t *testing.T) {
	ctx := context.Background()

	issuer, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{
		SigningKey: []byte("secret"),
		Issuer:     "auth.example.com",
		Audience:   []string{"api.example.com"},
		ExpiresIn:  time.Hour,
	})
	require.NoError(t, err)

	token, err := issuer.CreateSession(ctx, "user-123", "alice")
	require.NoError(t, err)

	claims, err := issuer.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, "auth.example.com", claims.Issuer)
	assert.Contains(t, claims.Audience, "api.example.com")

	// Expiry honors the configured duration, within scheduling slop.
	remaining := time.Until(claims.ExpiresAt.Time)
	assert.Greater(t, remaining, 59*time.Minute)
	assert.LessOrEqual(t, remaining, time.Hour)
}

func TestJWTSessionIssuer_Expired(t *testing.T) {
	ctx := context.Background()

	issuer, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{
		SigningKey: []byte("secret"),
		ExpiresIn:  -time.Hour,
	})
	require.NoError(t, err)

	token, err := issuer.CreateSession(ctx, "user-123", "alice")
	require.NoError(t, err)

	_, err = issuer.VerifySession(token)
	assert.Error(t, err)
}

func TestJWTSessionIssuer_WrongKey(t *testing.T) {
	ctx := context.Background()

	issuer, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{SigningKey: []byte("key-one")})
	require.NoError(t, err)

	other, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{SigningKey: []byte("key-two")})
	require.NoError(t, err)

	token, err := issuer.CreateSession(ctx, "user-123", "alice")
	require.NoError(t, err)

	_, err = other.VerifySession(token)
	assert.Error(t, err)
}

func TestJWTSessionIssuer_AlgorithmConfusion(t *testing.T) {
	ctx := context.Background()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	ecdsaIssuer, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{SigningKey: key})
	require.NoError(t, err)

	hmacIssuer, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{SigningKey: []byte("secret")})
	require.NoError(t, err)

	// A token signed with one algorithm must not verify under an issuer
	// configured for another.
	token, err := hmacIssuer.CreateSession(ctx, "user-123", "alice")
	require.NoError(t, err)

	_, err = ecdsaIssuer.VerifySession(token)
	assert.Error(t, err)
}

func TestJWTSessionIssuer_Garbage(t *testing.T) {
	issuer, err := NewJWTSessionIssuer(&JWTSessionIssuerConfig{SigningKey: []byte("secret")})
	require.NoError(t, err)

	_, err = issuer.VerifySession("not.a.jwt")
	assert.Error(t, err)

	_, err = issuer.VerifySession("")
	assert.Error(t, err)
}
