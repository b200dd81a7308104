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
	"bytes"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// DeviceType classifies a credential by its backup eligibility, mirroring the
// WebAuthn credential device type taxonomy.
type DeviceType string

const (
	// DeviceTypeSingleDevice is a credential bound to one authenticator.
	DeviceTypeSingleDevice DeviceType = "singleDevice"

	// DeviceTypeMultiDevice is a syncable (backup-eligible) credential.
	DeviceTypeMultiDevice DeviceType = "multiDevice"
)

// User is an account created by a successful registration ceremony.
// The ID doubles as the WebAuthn user handle and is immutable, as is
// the username.
type User struct {
	// ID is an opaque identifier, generated at registration time.
	ID string `json:"id"`

	// Username is the unique login name the user registered with.
	Username string `json:"username"`

	// CreatedAt is when the registration ceremony completed.
	CreatedAt time.Time `json:"created_at"`
}

// Credential is a public-key credential stored by the Relying Party.
// This wraps the go-webauthn Credential type with ownership metadata.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator.
	// Globally unique across all users.
	ID []byte `json:"id"`

	// UserID is the owning user's ID (WebAuthn user handle).
	UserID string `json:"user_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports reported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags contains authenticator flags captured at registration.
	Flags CredentialFlags `json:"flags"`

	// Authenticator contains authenticator-specific data, including the
	// signature counter used for clone detection.
	Authenticator AuthenticatorData `json:"authenticator"`

	// DeviceType classifies the credential as single- or multi-device.
	DeviceType DeviceType `json:"device_type"`

	// BackedUp indicates the credential is currently backed up.
	BackedUp bool `json:"backed_up"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last verified an assertion.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	// UserPresent indicates the user was present during the operation.
	UserPresent bool `json:"user_present"`

	// UserVerified indicates the user was verified (e.g., biometric, PIN).
	UserVerified bool `json:"user_verified"`

	// BackupEligible indicates the credential can be backed up.
	BackupEligible bool `json:"backup_eligible"`

	// BackupState indicates the credential is currently backed up.
	BackupState bool `json:"backup_state"`
}

// AuthenticatorData contains authenticator-specific information.
type AuthenticatorData struct {
	// AAGUID is the authenticator's unique identifier.
	AAGUID []byte `json:"aaguid"`

	// SignCount is the signature counter for clone detection.
	// Monotonic non-decreasing; mutated only by a successful
	// authentication ceremony.
	SignCount uint32 `json:"sign_count"`

	// CloneWarning indicates a potential cloned authenticator.
	CloneWarning bool `json:"clone_warning"`

	// Attachment indicates how the authenticator is attached.
	Attachment protocol.AuthenticatorAttachment `json:"attachment"`
}

// ToWebAuthn converts a Credential to the go-webauthn library's type.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.Authenticator.AAGUID,
			SignCount:    c.Authenticator.SignCount,
			CloneWarning: c.Authenticator.CloneWarning,
			Attachment:   c.Authenticator.Attachment,
		},
	}
}

// Descriptor returns the credential descriptor used for allow/exclude lists.
func (c *Credential) Descriptor() protocol.CredentialDescriptor {
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: c.ID,
		Transport:    c.Transport,
	}
}

// FromWebAuthnCredential creates a Credential from a freshly verified
// go-webauthn credential, owned by the given user.
func FromWebAuthnCredential(userID string, wc *webauthn.Credential) *Credential {
	deviceType := DeviceTypeSingleDevice
	if wc.Flags.BackupEligible {
		deviceType = DeviceTypeMultiDevice
	}
	return &Credential{
		ID:              wc.ID,
		UserID:          userID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transport:       wc.Transport,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		Authenticator: AuthenticatorData{
			AAGUID:       wc.Authenticator.AAGUID,
			SignCount:    wc.Authenticator.SignCount,
			CloneWarning: wc.Authenticator.CloneWarning,
			Attachment:   wc.Authenticator.Attachment,
		},
		DeviceType: deviceType,
		BackedUp:   wc.Flags.BackupState,
		CreatedAt:  time.Now().UTC(),
	}
}

// Result is the outcome of a successfully verified ceremony.
type Result struct {
	// User is the public identity of the verified user.
	User User `json:"user"`

	// Session is the opaque authenticated-session artifact produced by
	// the session issuer, empty when no issuer is configured.
	Session string `json:"-"`
}

// ceremonyUser adapts a user and their credentials to webauthn.User for the
// duration of one ceremony. During registration the user does not yet exist,
// so the adapter also carries the prospective handle and username.
type ceremonyUser struct {
	id          []byte
	name        string
	credentials []*Credential
}

// WebAuthnID returns the user handle.
func (u *ceremonyUser) WebAuthnID() []byte {
	return u.id
}

// WebAuthnName returns the username.
func (u *ceremonyUser) WebAuthnName() string {
	return u.name
}

// WebAuthnDisplayName returns the username; no separate display name is kept.
func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.name
}

// WebAuthnCredentials returns the user's registered credentials.
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.credentials))
	for i, c := range u.credentials {
		creds[i] = c.ToWebAuthn()
	}
	return creds
}

// findCredential returns the credential with the given raw ID, or nil.
func findCredential(creds []*Credential, rawID []byte) *Credential {
	for _, c := range creds {
		if bytes.Equal(c.ID, rawID) {
			return c
		}
	}
	return nil
}
