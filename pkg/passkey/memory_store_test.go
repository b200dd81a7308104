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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUserAndCredential(username string, credID []byte) (*User, *Credential) {
	user := &User{
		ID:        "user-" + username,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	cred := &Credential{
		ID:        credID,
		UserID:    user.ID,
		PublicKey: []byte("public-key"),
		CreatedAt: time.Now().UTC(),
	}
	return user, cred
}

func TestMemoryStore_CreateWithCredential(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, cred := testUserAndCredential("alice", []byte{1, 2, 3})
	require.NoError(t, store.CreateWithCredential(ctx, user, cred))

	got, err := store.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice", got.Username)

	got, err = store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	creds, err := store.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, []byte{1, 2, 3}, creds[0].ID)

	stored, err := store.GetByCredentialID(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.GetByID(ctx, "no-such-id")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.GetByCredentialID(ctx, []byte{9, 9, 9})
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestMemoryStore_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, cred := testUserAndCredential("alice", []byte{1})
	require.NoError(t, store.CreateWithCredential(ctx, user, cred))

	dup, dupCred := testUserAndCredential("alice", []byte{2})
	err := store.CreateWithCredential(ctx, dup, dupCred)
	assert.ErrorIs(t, err, ErrUserExists)

	// The failed create must not have stored the credential.
	_, err = store.GetByCredentialID(ctx, []byte{2})
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestMemoryStore_DuplicateCredentialID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, cred := testUserAndCredential("alice", []byte{1})
	require.NoError(t, store.CreateWithCredential(ctx, user, cred))

	other, otherCred := testUserAndCredential("bob", []byte{1})
	err := store.CreateWithCredential(ctx, other, otherCred)
	assert.ErrorIs(t, err, ErrCredentialExists)

	// The failed create must not have stored the user either.
	_, err = store.GetByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryStore_GetByUserID_Empty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	creds, err := store.GetByUserID(ctx, "no-such-user")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestMemoryStore_UpdateCounter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, cred := testUserAndCredential("alice", []byte{1, 2, 3})
	require.NoError(t, store.CreateWithCredential(ctx, user, cred))

	err := store.UpdateCounter(ctx, []byte{1, 2, 3}, user.ID, 42, false, false)
	require.NoError(t, err)

	got, err := store.GetByCredentialID(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), got.Authenticator.SignCount)
	assert.False(t, got.Authenticator.CloneWarning)
	assert.False(t, got.LastUsedAt.IsZero())

	err = store.UpdateCounter(ctx, []byte{1, 2, 3}, user.ID, 43, true, false)
	require.NoError(t, err)

	got, err = store.GetByCredentialID(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint32(43), got.Authenticator.SignCount)
	assert.True(t, got.Authenticator.CloneWarning)
}

func TestMemoryStore_UpdateCounter_WrongOwner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, cred := testUserAndCredential("alice", []byte{1, 2, 3})
	require.NoError(t, store.CreateWithCredential(ctx, user, cred))

	err := store.UpdateCounter(ctx, []byte{1, 2, 3}, "someone-else", 42, false, false)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	// The stored counter is untouched.
	got, err := store.GetByCredentialID(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), got.Authenticator.SignCount)
}

func TestMemoryStore_UpdateCounter_UnknownCredential(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.UpdateCounter(ctx, []byte{9}, "user", 1, false, false)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestMemoryStore_UpdateCounter_EnforceIncrease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, cred := testUserAndCredential("alice", []byte{1, 2, 3})
	cred.Authenticator.SignCount = 5
	require.NoError(t, store.CreateWithCredential(ctx, user, cred))

	// Equal and lower counters are rejected and leave the record untouched.
	for _, count := range []uint32{5, 4, 0} {
		err := store.UpdateCounter(ctx, []byte{1, 2, 3}, user.ID, count, true, true)
		assert.ErrorIs(t, err, ErrClonedAuthenticator)
	}
	got, err := store.GetByCredentialID(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got.Authenticator.SignCount)
	assert.False(t, got.Authenticator.CloneWarning)
	assert.True(t, got.LastUsedAt.IsZero())

	err = store.UpdateCounter(ctx, []byte{1, 2, 3}, user.ID, 6, false, true)
	require.NoError(t, err)

	got, err = store.GetByCredentialID(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint32(6), got.Authenticator.SignCount)
}

func TestMemoryStore_UpdateCounter_EnforceIncrease_ZeroStored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	// Authenticators that never implement a counter always report zero;
	// a zero stored counter accepts any reported value.
	user, cred := testUserAndCredential("alice", []byte{1, 2, 3})
	require.NoError(t, store.CreateWithCredential(ctx, user, cred))

	err := store.UpdateCounter(ctx, []byte{1, 2, 3}, user.ID, 0, false, true)
	require.NoError(t, err)
}

func TestMemoryStore_UpdateCounter_ConcurrentEnforce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, cred := testUserAndCredential("alice", []byte{1, 2, 3})
	cred.Authenticator.SignCount = 1
	require.NoError(t, store.CreateWithCredential(ctx, user, cred))

	// Every writer reports the same next counter; exactly one may win.
	const writers = 50
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			results <- store.UpdateCounter(ctx, []byte{1, 2, 3}, user.ID, 2, false, true)
		}()
	}

	var succeeded int
	for i := 0; i < writers; i++ {
		if err := <-results; err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrClonedAuthenticator)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := store.GetByCredentialID(ctx, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.Authenticator.SignCount)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user, cred := testUserAndCredential("alice", []byte{1})
	require.NoError(t, store.CreateWithCredential(ctx, user, cred))

	got, err := store.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	got.Username = "mallory"

	again, err := store.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)

	creds, err := store.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	creds[0].Authenticator.SignCount = 999

	stored, err := store.GetByCredentialID(ctx, []byte{1})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stored.Authenticator.SignCount)
}

func TestMemoryStore_Counts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	assert.Equal(t, 0, store.UserCount())
	assert.Equal(t, 0, store.CredentialCount())

	alice, aliceCred := testUserAndCredential("alice", []byte{1})
	require.NoError(t, store.CreateWithCredential(ctx, alice, aliceCred))

	bob, bobCred := testUserAndCredential("bob", []byte{2})
	require.NoError(t, store.CreateWithCredential(ctx, bob, bobCred))

	assert.Equal(t, 2, store.UserCount())
	assert.Equal(t, 2, store.CredentialCount())
}
