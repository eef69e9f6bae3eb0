package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenFixture(maxTokens int) (*RefreshTokenService, *fakeTokenStore) {
	store := newFakeTokenStore()
	svc := NewRefreshTokenService(store, "unit-test-pepper", 168*time.Hour, maxTokens, zerolog.Nop())
	return svc, store
}

func TestIssueStoresOnlyHash(t *testing.T) {
	svc, store := newTokenFixture(5)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	raw, err := svc.Issue(context.Background(), "alice", "10.0.0.1", "go-test", now)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	stored := store.tokens[1]
	require.NotNil(t, stored)
	assert.NotEqual(t, raw, stored.TokenHash, "raw token must never be persisted")
	assert.Len(t, stored.TokenHash, 64, "sha-256 hex digest")
	assert.Equal(t, now.Add(168*time.Hour), stored.ExpiresAt)
}

func TestVerifyAndRotate(t *testing.T) {
	svc, _ := newTokenFixture(5)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	raw, err := svc.Issue(context.Background(), "alice", "10.0.0.1", "go-test", now)
	require.NoError(t, err)

	newRaw, username, err := svc.VerifyAndRotate(context.Background(), raw, "10.0.0.1", "go-test", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	assert.NotEqual(t, raw, newRaw)

	// The used token is dead; the replacement works exactly once more.
	_, _, err = svc.VerifyAndRotate(context.Background(), raw, "10.0.0.1", "go-test", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, _, err = svc.VerifyAndRotate(context.Background(), newRaw, "10.0.0.1", "go-test", now.Add(2*time.Hour))
	require.NoError(t, err)
}

func TestVerifyUnknownToken(t *testing.T) {
	svc, _ := newTokenFixture(5)
	now := time.Now()

	_, _, err := svc.VerifyAndRotate(context.Background(), "never-issued", "", "", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, _ := newTokenFixture(5)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	raw, err := svc.Issue(context.Background(), "alice", "", "", now)
	require.NoError(t, err)

	_, _, err = svc.VerifyAndRotate(context.Background(), raw, "", "", now.Add(169*time.Hour))
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCapEvictsOldest(t *testing.T) {
	svc, store := newTokenFixture(5)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	raws := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		raw, err := svc.Issue(context.Background(), "alice", "", "", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		raws = append(raws, raw)
	}

	active, err := store.CountActive(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, active, "cap must hold after the sixth issue")

	// The first token was the oldest and must be the one evicted.
	_, _, err = svc.VerifyAndRotate(context.Background(), raws[0], "", "", base.Add(10*time.Minute))
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, _, err = svc.VerifyAndRotate(context.Background(), raws[1], "", "", base.Add(10*time.Minute))
	require.NoError(t, err)
}

func TestCapIsPerUser(t *testing.T) {
	svc, store := newTokenFixture(2)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, err := svc.Issue(context.Background(), "alice", "", "", now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		_, err = svc.Issue(context.Background(), "bob", "", "", now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	aliceActive, err := store.CountActive(context.Background(), "alice")
	require.NoError(t, err)
	bobActive, err := store.CountActive(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, aliceActive)
	assert.Equal(t, 2, bobActive)
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, _ := newTokenFixture(5)
	now := time.Now()

	raw, err := svc.Issue(context.Background(), "alice", "", "", now)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), raw))
	require.NoError(t, svc.Revoke(context.Background(), raw))
	require.NoError(t, svc.Revoke(context.Background(), "never-issued"))

	_, _, err = svc.VerifyAndRotate(context.Background(), raw, "", "", now)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestPepperBindsHashes(t *testing.T) {
	store := newFakeTokenStore()
	issuing := NewRefreshTokenService(store, "pepper-one", time.Hour, 5, zerolog.Nop())
	verifying := NewRefreshTokenService(store, "pepper-two", time.Hour, 5, zerolog.Nop())
	now := time.Now()

	raw, err := issuing.Issue(context.Background(), "alice", "", "", now)
	require.NoError(t, err)

	// Same store, different pepper: the hash no longer matches anything.
	_, _, err = verifying.VerifyAndRotate(context.Background(), raw, "", "", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSweepDeletesDeadTokens(t *testing.T) {
	svc, store := newTokenFixture(5)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.Issue(context.Background(), "alice", "", "", now.Add(-200*time.Hour))
	require.NoError(t, err)
	revoked, err := svc.Issue(context.Background(), "alice", "", "", now)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), revoked))
	live, err := svc.Issue(context.Background(), "alice", "", "", now)
	require.NoError(t, err)

	deleted, err := svc.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// The live token still rotates after the sweep.
	_, _, err = svc.VerifyAndRotate(context.Background(), live, "", "", now)
	require.NoError(t, err)

	active, err := store.CountActive(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}
