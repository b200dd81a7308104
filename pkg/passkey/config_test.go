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
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "valid minimal",
			config: Config{RPDisplayName: "Example Corp"},
		},
		{
			name: "valid full",
			config: Config{
				RPDisplayName:          "Example Corp",
				ChallengeTTL:           time.Minute,
				UserVerification:       "required",
				ResidentKeyRequirement: "preferred",
				AttestationPreference:  "direct",
			},
		},
		{
			name:    "missing display name",
			config:  Config{},
			wantErr: "RPDisplayName is required",
		},
		{
			name: "negative challenge ttl",
			config: Config{
				RPDisplayName: "Example Corp",
				ChallengeTTL:  -time.Second,
			},
			wantErr: "ChallengeTTL must not be negative",
		},
		{
			name: "invalid user verification",
			config: Config{
				RPDisplayName:    "Example Corp",
				UserVerification: "always",
			},
			wantErr: "invalid user verification",
		},
		{
			name: "invalid resident key requirement",
			config: Config{
				RPDisplayName:          "Example Corp",
				ResidentKeyRequirement: "maybe",
			},
			wantErr: "invalid resident key requirement",
		},
		{
			name: "invalid attestation preference",
			config: Config{
				RPDisplayName:         "Example Corp",
				AttestationPreference: "full",
			},
			wantErr: "invalid attestation preference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := Config{RPDisplayName: "Example Corp"}
	cfg.SetDefaults()

	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, "preferred", cfg.UserVerification)
	assert.Equal(t, "preferred", cfg.ResidentKeyRequirement)
	assert.Equal(t, "none", cfg.AttestationPreference)
}

func TestConfig_SetDefaults_PreservesExplicit(t *testing.T) {
	cfg := Config{
		RPDisplayName:          "Example Corp",
		ChallengeTTL:           time.Minute,
		UserVerification:       "required",
		ResidentKeyRequirement: "discouraged",
		AttestationPreference:  "direct",
	}
	cfg.SetDefaults()

	assert.Equal(t, time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, "required", cfg.UserVerification)
	assert.Equal(t, "discouraged", cfg.ResidentKeyRequirement)
	assert.Equal(t, "direct", cfg.AttestationPreference)
}

func TestConfig_ToWebAuthnConfig(t *testing.T) {
	cfg := Config{
		RPDisplayName:          "Example Corp",
		ChallengeTTL:           2 * time.Minute,
		UserVerification:       "required",
		ResidentKeyRequirement: "required",
		AttestationPreference:  "direct",
	}

	rp := RelyingParty{ID: "example.com", Origin: "https://example.com:8443"}
	waCfg := cfg.toWebAuthnConfig(rp)

	assert.Equal(t, "example.com", waCfg.RPID)
	assert.Equal(t, "Example Corp", waCfg.RPDisplayName)
	assert.Equal(t, []string{"https://example.com:8443"}, waCfg.RPOrigins)
	assert.Equal(t, protocol.PreferDirectAttestation, waCfg.AttestationPreference)
	assert.Equal(t, protocol.VerificationRequired, waCfg.AuthenticatorSelection.UserVerification)
	assert.Equal(t, protocol.ResidentKeyRequirementRequired, waCfg.AuthenticatorSelection.ResidentKey)

	assert.True(t, waCfg.Timeouts.Registration.Enforce)
	assert.Equal(t, 2*time.Minute, waCfg.Timeouts.Registration.Timeout)
	assert.True(t, waCfg.Timeouts.Login.Enforce)
	assert.Equal(t, 2*time.Minute, waCfg.Timeouts.Login.Timeout)
}

func TestConfig_ToWebAuthnConfig_PerRelyingParty(t *testing.T) {
	cfg := Config{RPDisplayName: "Example Corp"}
	cfg.SetDefaults()

	one := cfg.toWebAuthnConfig(RelyingParty{ID: "one.example.com", Origin: "https://one.example.com"})
	two := cfg.toWebAuthnConfig(RelyingParty{ID: "two.example.com", Origin: "https://two.example.com"})

	assert.Equal(t, "one.example.com", one.RPID)
	assert.Equal(t, "two.example.com", two.RPID)
	assert.NotEqual(t, one.RPOrigins, two.RPOrigins)
}

func TestValidateRelyingParty(t *testing.T) {
	assert.NoError(t, validateRelyingParty(RelyingParty{ID: "example.com", Origin: "https://example.com"}))
	assert.Error(t, validateRelyingParty(RelyingParty{Origin: "https://example.com"}))
	assert.Error(t, validateRelyingParty(RelyingParty{ID: "example.com"}))
	assert.Error(t, validateRelyingParty(RelyingParty{}))
}
