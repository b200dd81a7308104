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

// Package http provides composable HTTP handlers for the passkey ceremonies.
//
// The handlers own only transport concerns: deriving the relying party
// identity from the request, carrying the opaque ceremony token in a
// short-lived HttpOnly cookie, parsing WebAuthn response bodies, and mapping
// ceremony errors to status codes. All ceremony state lives server-side in
// the challenge store.
package http
