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

package http

import "github.com/jeremyhahn/go-passkey/pkg/passkey"

// Ceremony cookie names. Each holds only the opaque challenge token; all
// ceremony state lives server-side in the challenge store.
const (
	// CookieRegistration carries the registration ceremony token.
	CookieRegistration = "reg-ceremony"

	// CookieAuthentication carries the authentication ceremony token.
	CookieAuthentication = "auth-ceremony"

	// CookieSession carries the authenticated-session artifact.
	CookieSession = "session"
)

// OptionsRequest is the request body for both options endpoints.
type OptionsRequest struct {
	// Username the ceremony is for (required).
	Username string `json:"username"`
}

// VerifyResponse is the response after a successfully verified ceremony.
type VerifyResponse struct {
	// Success is always true on this response.
	Success bool `json:"success"`

	// User is the public identity of the verified user.
	User passkey.User `json:"user"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is a human-readable error message. Internal detail is never
	// included; unexpected failures surface as a generic message.
	Error string `json:"error"`
}

// Ceremony names used for metrics and expiry messages.
const (
	ceremonyRegistration   = "registration"
	ceremonyAuthentication = "authentication"
)

// Outcome labels reported to the ceremony recorder.
const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeExpired  = "expired"
	outcomeRejected = "rejected"
)

// CeremonyRecorder receives ceremony outcomes for instrumentation.
// Implementations must be safe for concurrent use.
type CeremonyRecorder interface {
	// RecordCeremony records one finished ceremony attempt.
	RecordCeremony(ceremony, outcome string)
}
