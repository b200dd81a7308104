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
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// MemoryChallengeStore is an in-memory ChallengeStore. A single mutex makes
// Consume an atomic read-and-delete, so two concurrent verify attempts with
// the same token can never both observe a valid challenge.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	pending map[string]*PendingCeremony
	ttl     time.Duration

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewMemoryChallengeStore creates a challenge store with the given TTL.
// A zero TTL defaults to 5 minutes.
func NewMemoryChallengeStore(ttl time.Duration) *MemoryChallengeStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryChallengeStore{
		pending: make(map[string]*PendingCeremony),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue stores the pending ceremony under a fresh random token.
func (s *MemoryChallengeStore) Issue(ctx context.Context, pending *PendingCeremony) (string, error) {
	tokenBytes := make([]byte, 16)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", WrapError("issue challenge", err)
	}
	token := hex.EncodeToString(tokenBytes)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pending.IssuedAt = now
	pending.ExpiresAt = now.Add(s.ttl)
	s.pending[token] = pending

	// Opportunistic sweep keeps abandoned ceremonies from accumulating.
	for t, p := range s.pending {
		if now.After(p.ExpiresAt) {
			delete(s.pending, t)
		}
	}

	return token, nil
}

// Consume atomically looks up and deletes the pending ceremony. An expired,
// unknown, already-consumed, or purpose-mismatched token fails with
// ErrChallengeExpired; the entry is deleted either way, so a token is never
// usable twice.
func (s *MemoryChallengeStore) Consume(ctx context.Context, token string, purpose Purpose) (*PendingCeremony, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[token]
	if !ok {
		return nil, NewError("consume challenge", ErrChallengeExpired)
	}
	delete(s.pending, token)

	if s.now().After(pending.ExpiresAt) {
		return nil, NewError("consume challenge", ErrChallengeExpired)
	}
	if pending.Purpose != purpose {
		return nil, NewError("consume challenge", ErrChallengeExpired)
	}

	return pending, nil
}

// Count returns the number of pending ceremonies, expired ones included.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
