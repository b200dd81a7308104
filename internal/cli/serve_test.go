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

package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

func TestRegisterStoreChecks_Healthy(t *testing.T) {
	checker := health.NewChecker()
	store := passkey.NewMemoryStore()
	challenges := passkey.NewMemoryChallengeStore(time.Minute)

	registerStoreChecks(checker, store, challenges)

	assert.ElementsMatch(t,
		[]string{"credential-store", "challenge-store"},
		checker.GetAllChecks())

	// An empty store is still a working store: the lookup miss is not a
	// failure, and the challenge round trip cleans up after itself.
	assert.True(t, checker.IsHealthy(context.Background()))
	assert.Equal(t, 0, challenges.Count())
}

func TestRegisterStoreChecks_FailingStores(t *testing.T) {
	checker := health.NewChecker()
	registerStoreChecks(checker, &failingUserStore{}, &failingChallengeStore{})

	assert.False(t, checker.IsHealthy(context.Background()))
	for _, result := range checker.Ready(context.Background()) {
		assert.Equal(t, health.StatusUnhealthy, result.Status)
		assert.Contains(t, result.Error, "store down")
	}
}

var errStoreDown = errors.New("store down")

type failingUserStore struct{}

func (s *failingUserStore) GetByUsername(ctx context.Context, username string) (*passkey.User, error) {
	return nil, errStoreDown
}

func (s *failingUserStore) GetByID(ctx context.Context, id string) (*passkey.User, error) {
	return nil, errStoreDown
}

func (s *failingUserStore) CreateWithCredential(ctx context.Context, user *passkey.User, cred *passkey.Credential) error {
	return errStoreDown
}

type failingChallengeStore struct{}

func (s *failingChallengeStore) Issue(ctx context.Context, pending *passkey.PendingCeremony) (string, error) {
	return "", errStoreDown
}

func (s *failingChallengeStore) Consume(ctx context.Context, token string, purpose passkey.Purpose) (*passkey.PendingCeremony, error) {
	return nil, errStoreDown
}
