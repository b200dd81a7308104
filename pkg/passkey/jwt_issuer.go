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
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTSessionIssuer issues signed JWTs as the authenticated-session artifact.
// It implements SessionIssuer.
type JWTSessionIssuer struct {
	key       any
	method    jwt.SigningMethod
	issuer    string
	audience  []string
	expiresIn time.Duration
}

// JWTSessionIssuerConfig configures a JWTSessionIssuer.
type JWTSessionIssuerConfig struct {
	// SigningKey signs tokens. Either a crypto.Signer (Ed25519, ECDSA P-256,
	// or RSA) or an HMAC secret ([]byte). Required.
	SigningKey any

	// Issuer is the JWT issuer claim (default: "go-passkey").
	Issuer string

	// Audience is the JWT audience claim (default: ["go-passkey"]).
	Audience []string

	// ExpiresIn is how long sessions are valid (default: 24 hours).
	ExpiresIn time.Duration
}

// NewJWTSessionIssuer creates a session issuer with the given configuration.
func NewJWTSessionIssuer(config *JWTSessionIssuerConfig) (*JWTSessionIssuer, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.SigningKey == nil {
		return nil, fmt.Errorf("signing key is required")
	}

	method, err := signingMethodFor(config.SigningKey)
	if err != nil {
		return nil, err
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}
	audience := config.Audience
	if len(audience) == 0 {
		audience = []string{"go-passkey"}
	}
	expiresIn := config.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 24 * time.Hour
	}

	return &JWTSessionIssuer{
		key:       config.SigningKey,
		method:    method,
		issuer:    issuer,
		audience:  audience,
		expiresIn: expiresIn,
	}, nil
}

// SessionClaims are the claims carried by issued session tokens.
type SessionClaims struct {
	jwt.RegisteredClaims

	// Username is the verified username.
	Username string `json:"username"`
}

// CreateSession issues a signed session token for the verified identity.
func (g *JWTSessionIssuer) CreateSession(ctx context.Context, userID, username string) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings(g.audience),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Username: username,
	}

	token := jwt.NewWithClaims(g.method, claims)
	signed, err := token.SignedString(g.key)
	if err != nil {
		return "", WrapError("create session", err)
	}
	return signed, nil
}

// VerifySession parses and validates a session token, returning its claims.
func (g *JWTSessionIssuer) VerifySession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != g.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return g.verificationKey()
	}, jwt.WithIssuer(g.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, WrapError("verify session", err)
	}
	if !token.Valid {
		return nil, NewError("verify session", ErrVerificationFailed)
	}
	return claims, nil
}

// verificationKey returns the key used to verify issued tokens.
func (g *JWTSessionIssuer) verificationKey() (any, error) {
	switch k := g.key.(type) {
	case []byte:
		return k, nil
	case crypto.Signer:
		return k.Public(), nil
	default:
		return nil, fmt.Errorf("unsupported signing key type %T", g.key)
	}
}

// signingMethodFor selects the JWT signing method for a key.
func signingMethodFor(key any) (jwt.SigningMethod, error) {
	switch k := key.(type) {
	case []byte:
		return jwt.SigningMethodHS256, nil
	case ed25519.PrivateKey:
		return jwt.SigningMethodEdDSA, nil
	case *ecdsa.PrivateKey:
		return jwt.SigningMethodES256, nil
	case *rsa.PrivateKey:
		return jwt.SigningMethodRS256, nil
	default:
		return nil, fmt.Errorf("unsupported signing key type %T", k)
	}
}
