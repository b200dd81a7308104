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

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Handler provides HTTP handlers for the passkey ceremonies. The handlers
// derive the relying party identity from each request and carry ceremony
// state only as an opaque token in a short-lived cookie.
type Handler struct {
	service      *passkey.Service
	logger       *logging.Logger
	recorder     CeremonyRecorder
	cookieSecure bool
	cookieMaxAge time.Duration
	sessionTTL   time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets a custom logger for the handler.
func WithLogger(logger *logging.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithCeremonyRecorder sets the instrumentation sink for ceremony outcomes.
func WithCeremonyRecorder(recorder CeremonyRecorder) HandlerOption {
	return func(h *Handler) {
		h.recorder = recorder
	}
}

// WithSecureCookies marks ceremony and session cookies Secure.
func WithSecureCookies(secure bool) HandlerOption {
	return func(h *Handler) {
		h.cookieSecure = secure
	}
}

// WithSessionTTL sets the session cookie lifetime.
func WithSessionTTL(ttl time.Duration) HandlerOption {
	return func(h *Handler) {
		h.sessionTTL = ttl
	}
}

// NewHandler creates a ceremony HTTP handler.
func NewHandler(service *passkey.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:      service,
		logger:       logging.DefaultLogger(),
		cookieMaxAge: service.Config().ChallengeTTL,
		sessionTTL:   24 * time.Hour,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterOptions handles POST /register/options.
//
// Request body: {"username": "alice"}
// Response: WebAuthn PublicKeyCredentialCreationOptions; the ceremony token
// is set as a short-lived HttpOnly cookie.
func (h *Handler) RegisterOptions(w http.ResponseWriter, r *http.Request) {
	username, ok := h.decodeUsername(w, r)
	if !ok {
		return
	}

	options, token, err := h.service.BeginRegistration(r.Context(), username, relyingPartyFromRequest(r))
	if err != nil {
		h.handleServiceError(w, err, ceremonyRegistration)
		return
	}

	h.setCeremonyCookie(w, CookieRegistration, token)
	h.writeJSON(w, http.StatusOK, options)
}

// RegisterVerify handles POST /register/verify.
//
// Request body: WebAuthn attestation response JSON. On success the ceremony
// cookie is cleared, the session cookie is set, and the response is
// {"success":true,"user":{...}}.
func (h *Handler) RegisterVerify(w http.ResponseWriter, r *http.Request) {
	token, ok := h.ceremonyToken(w, r, CookieRegistration, ceremonyRegistration)
	if !ok {
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		h.record(ceremonyRegistration, outcomeRejected)
		h.writeError(w, http.StatusBadRequest, "Invalid attestation response")
		return
	}

	result, err := h.service.FinishRegistration(r.Context(), token, relyingPartyFromRequest(r), response)
	if err != nil {
		h.clearCeremonyCookie(w, CookieRegistration)
		h.handleServiceError(w, err, ceremonyRegistration)
		return
	}

	h.record(ceremonyRegistration, outcomeSuccess)
	h.clearCeremonyCookie(w, CookieRegistration)
	h.setSessionCookie(w, result.Session)
	h.writeJSON(w, http.StatusOK, VerifyResponse{Success: true, User: result.User})
}

// LoginOptions handles POST /login/options.
//
// Request body: {"username": "alice"}
// Response: WebAuthn PublicKeyCredentialRequestOptions with allowCredentials
// for every credential the user owns.
func (h *Handler) LoginOptions(w http.ResponseWriter, r *http.Request) {
	username, ok := h.decodeUsername(w, r)
	if !ok {
		return
	}

	options, token, err := h.service.BeginLogin(r.Context(), username, relyingPartyFromRequest(r))
	if err != nil {
		h.handleServiceError(w, err, ceremonyAuthentication)
		return
	}

	h.setCeremonyCookie(w, CookieAuthentication, token)
	h.writeJSON(w, http.StatusOK, options)
}

// LoginVerify handles POST /login/verify.
//
// Request body: WebAuthn assertion response JSON.
func (h *Handler) LoginVerify(w http.ResponseWriter, r *http.Request) {
	token, ok := h.ceremonyToken(w, r, CookieAuthentication, ceremonyAuthentication)
	if !ok {
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		h.record(ceremonyAuthentication, outcomeRejected)
		h.writeError(w, http.StatusBadRequest, "Invalid assertion response")
		return
	}

	result, err := h.service.FinishLogin(r.Context(), token, relyingPartyFromRequest(r), response)
	if err != nil {
		h.clearCeremonyCookie(w, CookieAuthentication)
		h.handleServiceError(w, err, ceremonyAuthentication)
		return
	}

	h.record(ceremonyAuthentication, outcomeSuccess)
	h.clearCeremonyCookie(w, CookieAuthentication)
	h.setSessionCookie(w, result.Session)
	h.writeJSON(w, http.StatusOK, VerifyResponse{Success: true, User: result.User})
}

// decodeUsername decodes the options request body and validates the username
// is present. Writes the error response itself when it returns false.
func (h *Handler) decodeUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req OptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	if strings.TrimSpace(req.Username) == "" {
		h.writeError(w, http.StatusBadRequest, "Username is required")
		return "", false
	}
	return req.Username, true
}

// ceremonyToken extracts the ceremony token cookie. A missing cookie means
// the ceremony state expired or never existed.
func (h *Handler) ceremonyToken(w http.ResponseWriter, r *http.Request, cookie, ceremony string) (string, bool) {
	c, err := r.Cookie(cookie)
	if err != nil || c.Value == "" {
		h.record(ceremony, outcomeExpired)
		h.writeError(w, http.StatusBadRequest, expiredMessage(ceremony))
		return "", false
	}
	return c.Value, true
}

// handleServiceError maps ceremony errors to HTTP responses. Internal detail
// is logged server-side and never surfaced to the client.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error, ceremony string) {
	switch {
	case errors.Is(err, passkey.ErrInvalidUsername):
		h.writeError(w, http.StatusBadRequest, "Username is required")
	case errors.Is(err, passkey.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, "Invalid request")
	case errors.Is(err, passkey.ErrUserExists):
		h.writeError(w, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, passkey.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, passkey.ErrNoCredentials):
		h.writeError(w, http.StatusNotFound, "No authenticators registered for this user")
	case errors.Is(err, passkey.ErrCredentialNotFound):
		h.writeError(w, http.StatusNotFound, "Authenticator not found")
	case errors.Is(err, passkey.ErrChallengeExpired):
		h.record(ceremony, outcomeExpired)
		h.writeError(w, http.StatusBadRequest, expiredMessage(ceremony))
	case errors.Is(err, passkey.ErrVerificationFailed),
		errors.Is(err, passkey.ErrClonedAuthenticator):
		h.record(ceremony, outcomeFailure)
		h.writeError(w, http.StatusBadRequest, "Verification failed")
	default:
		h.logger.Error("ceremony failed with internal error",
			"ceremony", ceremony,
			"error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// relyingPartyFromRequest derives the relying party identity: the RP ID is
// the request host with any port stripped, and the origin is the Origin
// header, reconstructed from the scheme and host when absent.
func relyingPartyFromRequest(r *http.Request) passkey.RelyingParty {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		origin = scheme + "://" + r.Host
	}

	return passkey.RelyingParty{ID: host, Origin: origin}
}

// expiredMessage returns the client-facing message for unusable ceremony state.
func expiredMessage(ceremony string) string {
	if ceremony == ceremonyRegistration {
		return "Registration session expired"
	}
	return "Authentication session expired"
}

// setCeremonyCookie stores the opaque challenge token for the verify call.
func (h *Handler) setCeremonyCookie(w http.ResponseWriter, name, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCeremonyCookie removes the ceremony cookie once its token is spent.
func (h *Handler) clearCeremonyCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// setSessionCookie delivers the authenticated-session artifact, when the
// service is configured with a session issuer.
func (h *Handler) setSessionCookie(w http.ResponseWriter, artifact string) {
	if artifact == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieSession,
		Value:    artifact,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// record reports a ceremony outcome to the configured recorder.
func (h *Handler) record(ceremony, outcome string) {
	if h.recorder != nil {
		h.recorder.RecordCeremony(ceremony, outcome)
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already written, can only log.
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}
