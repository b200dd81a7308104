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

// Package passkey implements passwordless authentication with WebAuthn
// (FIDO2) registration and authentication ceremonies.
//
// The package is the ceremony protocol engine: it issues unpredictable,
// single-use challenges bound to a purpose and username, builds ceremony
// options bound to a relying-party identity, verifies attestation and
// assertion responses against stored public-key credentials, and maintains
// per-credential signature counters for cloned-authenticator detection.
//
// # Architecture
//
//  1. Service - registration and authentication ceremonies
//  2. Stores (UserStore, CredentialStore, ChallengeStore) - pluggable
//     persistence with atomic operations; in-memory implementations included
//  3. SessionIssuer - external collaborator producing the authenticated
//     session artifact; a JWT implementation is included
//  4. HTTP layer (pkg/passkey/http) - chi-mountable ceremony endpoints
//
// # Usage
//
// Basic usage with in-memory storage:
//
//	store := passkey.NewMemoryStore()
//	svc, err := passkey.NewService(passkey.ServiceParams{
//	    Config:          &passkey.Config{RPDisplayName: "My App"},
//	    UserStore:       store,
//	    CredentialStore: store,
//	    ChallengeStore:  passkey.NewMemoryChallengeStore(0),
//	})
//
// The relying party identity is not fixed at construction: each ceremony
// call receives a RelyingParty derived from the request, so the same
// deployment answers correctly under any hostname it is reachable on and
// tests can supply arbitrary identities without a transport layer.
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the WebAuthn API in secure contexts.
package passkey
