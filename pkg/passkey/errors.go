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
	"errors"
	"fmt"
)

// Sentinel errors for passkey ceremony operations.
var (
	// ErrInvalidUsername is returned when a username is missing or malformed.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidRequest is returned when the request is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when registering a username that is already taken.
	ErrUserExists = errors.New("user already exists")

	// ErrCredentialNotFound is returned when a credential cannot be resolved.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists is returned when registering a duplicate credential ID.
	ErrCredentialExists = errors.New("credential already exists")

	// ErrNoCredentials is returned when a user has no registered credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrChallengeExpired is returned when a ceremony challenge is missing,
	// expired, purpose-mismatched, or already consumed.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrVerificationFailed is returned when signature, origin, relying party
	// or challenge verification fails.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrClonedAuthenticator is returned when counter rollback rejection is
	// enabled and an assertion reports a non-increasing signature counter.
	ErrClonedAuthenticator = errors.New("cloned authenticator detected")

	// ErrInternal is returned for unexpected storage or crypto failures.
	ErrInternal = errors.New("internal error")
)

// Error wraps a ceremony error with the operation that produced it.
type Error struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with the given operation and cause.
func NewError(op string, err error) error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsUserExists returns true if the error indicates a duplicate username.
func IsUserExists(err error) bool {
	return errors.Is(err, ErrUserExists)
}

// IsCredentialNotFound returns true if the error indicates an unresolvable credential.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsChallengeExpired returns true if the error indicates an unusable challenge.
func IsChallengeExpired(err error) bool {
	return errors.Is(err, ErrChallengeExpired)
}

// IsVerificationFailed returns true if the error indicates verification failed.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// IsClonedAuthenticator returns true if the error indicates a rejected
// non-increasing signature counter.
func IsClonedAuthenticator(err error) bool {
	return errors.Is(err, ErrClonedAuthenticator)
}
