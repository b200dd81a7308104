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

// Package rest wires the passkey ceremony engine into an HTTP server.
//
// The server mounts four ceremony endpoints under /api/auth:
//
//	POST /api/auth/register/options
//	POST /api/auth/register/verify
//	POST /api/auth/login/options
//	POST /api/auth/login/verify
//
// alongside Kubernetes-style health probes (/healthz, /readyz,
// /health/startup) and an optional Prometheus endpoint (/metrics).
//
// Requests pass through panic recovery, request logging, and metrics
// middleware; the ceremony subtree is additionally rate limited per
// client IP when a limiter is configured. TLS is enabled by providing
// a certificate and key pair, which also forces Secure cookies.
//
// Usage:
//
//	server, err := rest.NewServer(&rest.Config{
//	    Port:    8080,
//	    Service: svc,
//	    Checker: checker,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Fatal(err)
//	    }
//	}()
//	defer server.Stop(context.Background())
package rest
