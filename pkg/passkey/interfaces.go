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
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Purpose identifies which ceremony a challenge was issued for. A challenge
// issued for one purpose is never usable for the other.
type Purpose string

const (
	// PurposeRegistration marks a challenge issued for a registration ceremony.
	PurposeRegistration Purpose = "registration"

	// PurposeAuthentication marks a challenge issued for an authentication ceremony.
	PurposeAuthentication Purpose = "authentication"
)

// PendingCeremony is the server-side state of an options→verify round trip.
// The challenge value itself lives inside Session.Challenge; the username the
// ceremony was issued for travels with the record rather than with the client,
// so the transport layer only ever carries the opaque token.
type PendingCeremony struct {
	// Purpose is the ceremony this challenge was issued for.
	Purpose Purpose

	// Username the ceremony is bound to.
	Username string

	// Session is the go-webauthn session data, including the random
	// challenge the client response must echo back.
	Session webauthn.SessionData

	// IssuedAt is when the challenge was issued.
	IssuedAt time.Time

	// ExpiresAt is when the challenge becomes unusable.
	ExpiresAt time.Time
}

// ChallengeStore persists pending ceremonies keyed by an opaque token.
// Implementations must make Consume atomic: of any number of concurrent
// calls with the same token, at most one may succeed.
type ChallengeStore interface {
	// Issue stores the pending ceremony and returns the opaque token the
	// transport layer delivers to the client.
	Issue(ctx context.Context, pending *PendingCeremony) (string, error)

	// Consume atomically looks up and deletes the pending ceremony.
	// Returns ErrChallengeExpired if the token is unknown, the challenge
	// has expired, or the purpose does not match.
	Consume(ctx context.Context, token string, purpose Purpose) (*PendingCeremony, error)
}

// UserStore persists users. Users are created only together with their first
// credential, so creation lives on this interface as an atomic operation
// spanning both records.
type UserStore interface {
	// GetByUsername retrieves a user by username.
	// Returns ErrUserNotFound if the user does not exist.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id string) (*User, error)

	// CreateWithCredential atomically creates a user and their first
	// credential. No partially created state may be observable. Returns
	// ErrUserExists on a username conflict and ErrCredentialExists on a
	// credential ID conflict.
	CreateWithCredential(ctx context.Context, user *User, cred *Credential) error
}

// CredentialStore persists public-key credentials and signature counters.
type CredentialStore interface {
	// GetByUserID retrieves all credentials owned by a user.
	// Returns an empty slice if the user has none.
	GetByUserID(ctx context.Context, userID string) ([]*Credential, error)

	// GetByCredentialID retrieves a credential by its ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error)

	// UpdateCounter atomically sets the signature counter and clone warning
	// of the credential, guarded by ownership. When enforceIncrease is set
	// the update is conditional: a signCount that does not exceed the
	// stored non-zero counter writes nothing and returns
	// ErrClonedAuthenticator. The comparison must happen under the same
	// lock as the write, so two in-flight assertions cannot both apply the
	// same counter. Returns ErrCredentialNotFound if no credential with
	// this ID is owned by the user.
	UpdateCounter(ctx context.Context, credID []byte, userID string, signCount uint32, cloneWarning, enforceIncrease bool) error
}

// SessionIssuer produces an opaque authenticated-session artifact for a
// verified identity. It is invoked only after successful verification and
// is consumed, not implemented, by the ceremony engine.
type SessionIssuer interface {
	// CreateSession returns the session artifact for the verified user.
	CreateSession(ctx context.Context, userID, username string) (string, error)
}
