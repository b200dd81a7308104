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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// MaxUsernameLength bounds usernames accepted by the registration ceremony.
const MaxUsernameLength = 64

// RelyingParty is the per-request relying party identity a ceremony is bound
// to. The transport layer derives it from the calling host and Origin header;
// tests supply arbitrary values directly.
type RelyingParty struct {
	// ID is the relying party identifier, the host with any port stripped.
	ID string

	// Origin is the full web origin (scheme://host[:port]) the client
	// response must have been produced for.
	Origin string
}

// Config configures the ceremony engine.
type Config struct {
	// RPDisplayName is the human-readable name of the Relying Party.
	RPDisplayName string `yaml:"display_name" json:"display_name"`

	// ChallengeTTL bounds how long an issued challenge stays usable.
	// Default: 5 minutes.
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl"`

	// UserVerification specifies the user verification requirement.
	// Options: "required", "preferred", "discouraged"
	// Default: "preferred"
	UserVerification string `yaml:"user_verification" json:"user_verification"`

	// ResidentKeyRequirement specifies the discoverable credential preference.
	// Options: "required", "preferred", "discouraged"
	// Default: "preferred"
	ResidentKeyRequirement string `yaml:"resident_key" json:"resident_key"`

	// AttestationPreference specifies the attestation conveyance preference.
	// Options: "none", "indirect", "direct", "enterprise"
	// Default: "none"
	AttestationPreference string `yaml:"attestation" json:"attestation"`

	// StrictCredentialMatch disables the single-credential fallback during
	// authentication: when set, an assertion whose credential ID matches no
	// stored credential is always rejected, even if the user owns exactly
	// one credential.
	StrictCredentialMatch bool `yaml:"strict_credential_match" json:"strict_credential_match"`

	// RejectCounterRollback rejects an assertion whose reported signature
	// counter does not exceed the stored one (when the stored counter is
	// non-zero). When unset, the counter is overwritten unconditionally and
	// regressions are only logged.
	RejectCounterRollback bool `yaml:"reject_counter_rollback" json:"reject_counter_rollback"`

	// Debug enables debug logging inside the go-webauthn library.
	Debug bool `yaml:"debug" json:"debug"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if c.ChallengeTTL < 0 {
		return fmt.Errorf("ChallengeTTL must not be negative")
	}

	switch c.UserVerification {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid user verification: %s", c.UserVerification)
	}

	switch c.ResidentKeyRequirement {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid resident key requirement: %s", c.ResidentKeyRequirement)
	}

	switch c.AttestationPreference {
	case "", "none", "indirect", "direct", "enterprise":
	default:
		return fmt.Errorf("invalid attestation preference: %s", c.AttestationPreference)
	}

	return nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 5 * time.Minute
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.ResidentKeyRequirement == "" {
		c.ResidentKeyRequirement = "preferred"
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = "none"
	}
}

// toWebAuthnConfig builds a go-webauthn configuration bound to one relying
// party identity. The engine constructs one per derived RP identity, so the
// same deployment answers correctly on any host it is reachable under.
func (c *Config) toWebAuthnConfig(rp RelyingParty) *webauthn.Config {
	cfg := &webauthn.Config{
		RPID:          rp.ID,
		RPDisplayName: c.RPDisplayName,
		RPOrigins:     []string{rp.Origin},
		Debug:         c.Debug,
	}

	if c.ChallengeTTL > 0 {
		cfg.Timeouts = webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    c.ChallengeTTL,
				TimeoutUVD: c.ChallengeTTL,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    c.ChallengeTTL,
				TimeoutUVD: c.ChallengeTTL,
			},
		}
	}

	switch c.AttestationPreference {
	case "none":
		cfg.AttestationPreference = protocol.PreferNoAttestation
	case "indirect":
		cfg.AttestationPreference = protocol.PreferIndirectAttestation
	case "direct":
		cfg.AttestationPreference = protocol.PreferDirectAttestation
	case "enterprise":
		cfg.AttestationPreference = protocol.PreferEnterpriseAttestation
	}

	cfg.AuthenticatorSelection = protocol.AuthenticatorSelection{}

	switch c.UserVerification {
	case "required":
		cfg.AuthenticatorSelection.UserVerification = protocol.VerificationRequired
	case "preferred":
		cfg.AuthenticatorSelection.UserVerification = protocol.VerificationPreferred
	case "discouraged":
		cfg.AuthenticatorSelection.UserVerification = protocol.VerificationDiscouraged
	}

	switch c.ResidentKeyRequirement {
	case "required":
		cfg.AuthenticatorSelection.ResidentKey = protocol.ResidentKeyRequirementRequired
	case "preferred":
		cfg.AuthenticatorSelection.ResidentKey = protocol.ResidentKeyRequirementPreferred
	case "discouraged":
		cfg.AuthenticatorSelection.ResidentKey = protocol.ResidentKeyRequirementDiscouraged
	}

	return cfg
}

// validateRelyingParty checks a per-request relying party identity.
func validateRelyingParty(rp RelyingParty) error {
	if rp.ID == "" {
		return fmt.Errorf("relying party ID is required")
	}
	if rp.Origin == "" {
		return fmt.Errorf("relying party origin is required")
	}
	return nil
}
