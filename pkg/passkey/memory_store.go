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
	"encoding/hex"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of both UserStore and
// CredentialStore. Keeping both behind one mutex is what makes
// CreateWithCredential a genuinely atomic user+credential transaction.
type MemoryStore struct {
	mu          sync.RWMutex
	usersByName map[string]*User
	usersByID   map[string]*User
	credsByID   map[string]*Credential
	credsByUser map[string][]*Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usersByName: make(map[string]*User),
		usersByID:   make(map[string]*User),
		credsByID:   make(map[string]*Credential),
		credsByUser: make(map[string][]*Credential),
	}
}

// GetByUsername retrieves a user by username.
func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// GetByID retrieves a user by ID.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// CreateWithCredential atomically creates a user and their first credential.
// Both uniqueness checks happen under the same lock as the writes, so no
// partially created state is ever observable.
func (s *MemoryStore) CreateWithCredential(ctx context.Context, user *User, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByName[user.Username]; ok {
		return ErrUserExists
	}
	credKey := hex.EncodeToString(cred.ID)
	if _, ok := s.credsByID[credKey]; ok {
		return ErrCredentialExists
	}

	u := *user
	c := *cred
	s.usersByName[u.Username] = &u
	s.usersByID[u.ID] = &u
	s.credsByID[credKey] = &c
	s.credsByUser[u.ID] = append(s.credsByUser[u.ID], &c)

	return nil
}

// GetByUserID retrieves all credentials for a user.
func (s *MemoryStore) GetByUserID(ctx context.Context, userID string) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds := s.credsByUser[userID]
	result := make([]*Credential, len(creds))
	for i, c := range creds {
		cc := *c
		result[i] = &cc
	}
	return result, nil
}

// GetByCredentialID retrieves a credential by its ID.
func (s *MemoryStore) GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credsByID[hex.EncodeToString(credID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	c := *cred
	return &c, nil
}

// UpdateCounter sets the signature counter and clone warning of the
// credential owned by userID. The read, the increase check, and the write
// all happen under one lock, so two concurrent authentications cannot both
// apply a stale counter.
func (s *MemoryStore) UpdateCounter(ctx context.Context, credID []byte, userID string, signCount uint32, cloneWarning, enforceIncrease bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credsByID[hex.EncodeToString(credID)]
	if !ok || cred.UserID != userID {
		return ErrCredentialNotFound
	}
	if enforceIncrease && cred.Authenticator.SignCount != 0 && signCount <= cred.Authenticator.SignCount {
		return ErrClonedAuthenticator
	}

	cred.Authenticator.SignCount = signCount
	cred.Authenticator.CloneWarning = cloneWarning
	cred.LastUsedAt = time.Now().UTC()

	return nil
}

// UserCount returns the number of users in the store.
func (s *MemoryStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.usersByID)
}

// CredentialCount returns the number of credentials in the store.
func (s *MemoryStore) CredentialCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.credsByID)
}
