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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkey/pkg/logging"
)

// Service is the ceremony protocol engine. It issues single-use challenges,
// builds relying-party-bound ceremony options, verifies attestation and
// assertion responses against stored credentials, and maintains per-credential
// signature counters.
type Service struct {
	config     *Config
	users      UserStore
	creds      CredentialStore
	challenges ChallengeStore
	sessions   SessionIssuer // optional
	logger     *logging.Logger

	// One go-webauthn instance per relying party identity the deployment
	// is reached under. The identity is derived from client-supplied
	// headers, so the cache is capped: identities past the cap get a
	// per-call instance instead of a cache entry.
	rpMu sync.Mutex
	rps  map[RelyingParty]*webauthn.WebAuthn
}

// maxCachedRelyingParties caps the instance cache. A legitimate deployment
// is reached under a handful of hostnames; anything past the cap is served
// without being retained.
const maxCachedRelyingParties = 128

// ServiceParams contains the dependencies for creating a ceremony service.
type ServiceParams struct {
	// Config is the ceremony configuration (required).
	Config *Config

	// UserStore is the user persistence layer (required).
	UserStore UserStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// ChallengeStore holds pending ceremonies (required).
	ChallengeStore ChallengeStore

	// SessionIssuer produces the authenticated-session artifact after a
	// verified ceremony. Optional; when nil no artifact is produced.
	SessionIssuer SessionIssuer

	// Logger is the service logger. Optional; defaults to a redacting logger.
	Logger *logging.Logger
}

// NewService creates a ceremony service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Service{
		config:     params.Config,
		users:      params.UserStore,
		creds:      params.CredentialStore,
		challenges: params.ChallengeStore,
		sessions:   params.SessionIssuer,
		logger:     logger,
		rps:        make(map[RelyingParty]*webauthn.WebAuthn),
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// BeginRegistration starts a registration ceremony for a new username.
// Returns the creation options for the client and the opaque challenge token
// the verify call must present.
func (s *Service) BeginRegistration(ctx context.Context, username string, rp RelyingParty) (*protocol.CredentialCreation, string, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, "", NewError("begin registration", err)
	}
	if err := validateRelyingParty(rp); err != nil {
		return nil, "", NewError("begin registration", ErrInvalidRequest)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, "", NewError("begin registration", ErrUserExists)
	} else if !IsUserNotFound(err) {
		return nil, "", WrapError("begin registration", err)
	}

	wa, err := s.relyingParty(rp)
	if err != nil {
		return nil, "", WrapError("begin registration", err)
	}

	// Fresh user handle; persisted as the user ID on successful verify.
	user := &ceremonyUser{
		id:   []byte(uuid.NewString()),
		name: username,
	}

	var opts []webauthn.RegistrationOption
	if exclusions := s.exclusionsForUsername(ctx, username); len(exclusions) > 0 {
		opts = append(opts, webauthn.WithExclusions(exclusions))
	}

	options, session, err := wa.BeginRegistration(user, opts...)
	if err != nil {
		return nil, "", WrapError("begin registration", err)
	}

	token, err := s.challenges.Issue(ctx, &PendingCeremony{
		Purpose:  PurposeRegistration,
		Username: username,
		Session:  *session,
	})
	if err != nil {
		return nil, "", err
	}

	s.logger.Debug("registration options issued",
		s.logger.Sensitive("username", username),
		"rp_id", rp.ID)

	return options, token, nil
}

// FinishRegistration completes a registration ceremony: consumes the bound
// challenge, verifies the attestation response against the relying party
// identity, and atomically creates the user with their first credential.
func (s *Service) FinishRegistration(ctx context.Context, token string, rp RelyingParty, response *protocol.ParsedCredentialCreationData) (*Result, error) {
	if err := validateRelyingParty(rp); err != nil {
		return nil, NewError("finish registration", ErrInvalidRequest)
	}
	if response == nil {
		return nil, NewError("finish registration", ErrInvalidRequest)
	}

	pending, err := s.challenges.Consume(ctx, token, PurposeRegistration)
	if err != nil {
		return nil, err
	}

	wa, err := s.relyingParty(rp)
	if err != nil {
		return nil, WrapError("finish registration", err)
	}

	user := &ceremonyUser{
		id:   pending.Session.UserID,
		name: pending.Username,
	}

	credential, err := wa.CreateCredential(user, pending.Session, response)
	if err != nil {
		s.logger.Warn("attestation verification failed",
			s.logger.Sensitive("username", pending.Username),
			"rp_id", rp.ID,
			"error", err)
		return nil, NewError("finish registration", ErrVerificationFailed)
	}
	if len(credential.ID) == 0 || len(credential.PublicKey) == 0 {
		return nil, NewError("finish registration", ErrVerificationFailed)
	}

	newUser := &User{
		ID:        string(pending.Session.UserID),
		Username:  pending.Username,
		CreatedAt: time.Now().UTC(),
	}

	stored := FromWebAuthnCredential(newUser.ID, credential)
	if err := s.users.CreateWithCredential(ctx, newUser, stored); err != nil {
		return nil, WrapError("finish registration", err)
	}

	artifact, err := s.createSession(ctx, newUser)
	if err != nil {
		return nil, WrapError("finish registration", err)
	}

	s.logger.Info("registration verified",
		s.logger.Sensitive("username", newUser.Username),
		"rp_id", rp.ID,
		"device_type", string(stored.DeviceType))

	return &Result{User: *newUser, Session: artifact}, nil
}

// BeginLogin starts an authentication ceremony for an existing user. The
// returned options carry allowCredentials for every credential the user owns,
// so non-discoverable authenticators can locate the correct key.
func (s *Service) BeginLogin(ctx context.Context, username string, rp RelyingParty) (*protocol.CredentialAssertion, string, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, "", NewError("begin login", err)
	}
	if err := validateRelyingParty(rp); err != nil {
		return nil, "", NewError("begin login", ErrInvalidRequest)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, "", WrapError("begin login", err)
	}

	creds, err := s.creds.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, "", WrapError("begin login", err)
	}
	if len(creds) == 0 {
		return nil, "", NewError("begin login", ErrNoCredentials)
	}

	wa, err := s.relyingParty(rp)
	if err != nil {
		return nil, "", WrapError("begin login", err)
	}

	loginUser := &ceremonyUser{
		id:          []byte(user.ID),
		name:        user.Username,
		credentials: creds,
	}

	options, session, err := wa.BeginLogin(loginUser)
	if err != nil {
		return nil, "", WrapError("begin login", err)
	}

	token, err := s.challenges.Issue(ctx, &PendingCeremony{
		Purpose:  PurposeAuthentication,
		Username: username,
		Session:  *session,
	})
	if err != nil {
		return nil, "", err
	}

	s.logger.Debug("authentication options issued",
		s.logger.Sensitive("username", username),
		"rp_id", rp.ID,
		"credentials", len(creds))

	return options, token, nil
}

// FinishLogin completes an authentication ceremony: consumes the bound
// challenge, resolves the claimed credential, verifies the assertion
// signature against the stored public key, and updates the signature counter.
func (s *Service) FinishLogin(ctx context.Context, token string, rp RelyingParty, response *protocol.ParsedCredentialAssertionData) (*Result, error) {
	if err := validateRelyingParty(rp); err != nil {
		return nil, NewError("finish login", ErrInvalidRequest)
	}
	if response == nil {
		return nil, NewError("finish login", ErrInvalidRequest)
	}

	pending, err := s.challenges.Consume(ctx, token, PurposeAuthentication)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, pending.Username)
	if err != nil {
		return nil, WrapError("finish login", err)
	}

	creds, err := s.creds.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, WrapError("finish login", err)
	}
	if len(creds) == 0 {
		return nil, NewError("finish login", ErrNoCredentials)
	}

	target := findCredential(creds, response.RawID)
	if target == nil {
		if s.config.StrictCredentialMatch || len(creds) != 1 {
			return nil, NewError("finish login", ErrCredentialNotFound)
		}
		// Single-credential fallback: tolerate a credential ID encoding
		// mismatch by verifying against the user's only stored key. The
		// stored ID is aliased to the claimed one so the library resolves
		// it; the signature check still runs against the stored public key.
		s.logger.Warn("credential id mismatch, falling back to sole credential",
			s.logger.Sensitive("username", user.Username),
			"rp_id", rp.ID)
		aliased := *creds[0]
		aliased.ID = response.RawID
		target = &aliased
		pending.Session.AllowedCredentialIDs = [][]byte{response.RawID}
	}
	storedID := findStoredID(creds, target)

	wa, err := s.relyingParty(rp)
	if err != nil {
		return nil, WrapError("finish login", err)
	}

	loginUser := &ceremonyUser{
		id:          []byte(user.ID),
		name:        user.Username,
		credentials: []*Credential{target},
	}

	verified, err := wa.ValidateLogin(loginUser, pending.Session, response)
	if err != nil {
		s.logger.Warn("assertion verification failed",
			s.logger.Sensitive("username", user.Username),
			"rp_id", rp.ID,
			"error", err)
		return nil, NewError("finish login", ErrVerificationFailed)
	}

	newCount := verified.Authenticator.SignCount
	storedCount := target.Authenticator.SignCount
	if storedCount != 0 && newCount <= storedCount && !s.config.RejectCounterRollback {
		s.logger.Warn("signature counter did not increase",
			s.logger.Sensitive("username", user.Username),
			"stored", storedCount,
			"reported", newCount)
	}

	// Rollback rejection happens inside the store, under the same lock as
	// the write: comparing against the earlier credential snapshot would
	// let two in-flight assertions both apply the same counter.
	err = s.creds.UpdateCounter(ctx, storedID, user.ID, newCount,
		verified.Authenticator.CloneWarning, s.config.RejectCounterRollback)
	if err != nil {
		if IsClonedAuthenticator(err) {
			s.logger.Error("signature counter did not increase, rejecting",
				s.logger.Sensitive("username", user.Username),
				"reported", newCount)
			return nil, NewError("finish login", ErrClonedAuthenticator)
		}
		return nil, WrapError("finish login", err)
	}

	artifact, err := s.createSession(ctx, user)
	if err != nil {
		return nil, WrapError("finish login", err)
	}

	s.logger.Info("authentication verified",
		s.logger.Sensitive("username", user.Username),
		"rp_id", rp.ID,
		"sign_count", newCount)

	return &Result{User: *user, Session: artifact}, nil
}

// GetUser retrieves a user by username.
func (s *Service) GetUser(ctx context.Context, username string) (*User, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, NewError("get user", err)
	}
	return s.users.GetByUsername(ctx, username)
}

// GetCredentials retrieves all credentials owned by a user.
func (s *Service) GetCredentials(ctx context.Context, userID string) ([]*Credential, error) {
	return s.creds.GetByUserID(ctx, userID)
}

// relyingParty returns the go-webauthn instance for the given identity,
// creating it on first use. Instances are cached up to
// maxCachedRelyingParties; beyond that they are built per call, so a flood
// of requests with fabricated Origin headers cannot grow the map without
// bound.
func (s *Service) relyingParty(rp RelyingParty) (*webauthn.WebAuthn, error) {
	s.rpMu.Lock()
	defer s.rpMu.Unlock()

	if wa, ok := s.rps[rp]; ok {
		return wa, nil
	}

	wa, err := webauthn.New(s.config.toWebAuthnConfig(rp))
	if err != nil {
		return nil, err
	}
	if len(s.rps) < maxCachedRelyingParties {
		s.rps[rp] = wa
	}
	return wa, nil
}

// exclusionsForUsername lists descriptors for credentials already owned by a
// username, so a retried enrollment cannot silently create a duplicate.
// Empty for a username that has never completed registration.
func (s *Service) exclusionsForUsername(ctx context.Context, username string) []protocol.CredentialDescriptor {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil
	}
	creds, err := s.creds.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil
	}
	exclusions := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		exclusions[i] = c.Descriptor()
	}
	return exclusions
}

// createSession invokes the session issuer for a verified identity.
func (s *Service) createSession(ctx context.Context, user *User) (string, error) {
	if s.sessions == nil {
		return "", nil
	}
	return s.sessions.CreateSession(ctx, user.ID, user.Username)
}

// normalizeUsername trims and validates a candidate username.
func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > MaxUsernameLength {
		return "", ErrInvalidUsername
	}
	return username, nil
}

// findStoredID maps a possibly aliased credential back to its stored ID.
func findStoredID(creds []*Credential, target *Credential) []byte {
	for _, c := range creds {
		if c == target {
			return c.ID
		}
	}
	// Aliased fallback credential: the stored record is the sole one.
	return creds[0].ID
}
