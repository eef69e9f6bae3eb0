package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"github.com/examgate/examgate-backend/internal/model"
)

func newAuthFixture(t *testing.T) (*AuthService, *model.Account) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	account := &model.Account{
		ID:           7,
		Username:     "examiner1",
		Name:         "Dewi Sartika",
		Role:         model.RoleExaminer,
		PasswordHash: string(hash),
	}
	refresh := NewRefreshTokenService(newFakeTokenStore(), "pepper", time.Hour, 5, zerolog.Nop())
	svc := NewAuthService(newFakeAccountStore(account), refresh, "unit-test-secret", 30*time.Minute, bcrypt.MinCost, zerolog.Nop())
	return svc, account
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, account := newAuthFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	resp, err := svc.Login(context.Background(), "examiner1", "correct horse", "10.0.0.1", "go-test", now)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, account.Username, resp.Account.Username)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.UserID)
	assert.Equal(t, model.RoleExaminer, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t)
	now := time.Now()

	_, err := svc.Login(context.Background(), "examiner1", "wrong", "", "", now)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown username yields the same error as a wrong password.
	_, err = svc.Login(context.Background(), "nobody", "correct horse", "", "", now)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesPair(t *testing.T) {
	svc, _ := newAuthFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	login, err := svc.Login(context.Background(), "examiner1", "correct horse", "", "", now)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken, "", "", now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The pre-rotation refresh token is no longer usable.
	_, err = svc.Refresh(context.Background(), login.RefreshToken, "", "", now.Add(11*time.Minute))
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _ := newAuthFixture(t)
	now := time.Now()

	login, err := svc.Login(context.Background(), "examiner1", "correct horse", "", "", now)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken))
	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken))

	_, err = svc.Refresh(context.Background(), login.RefreshToken, "", "", now)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, account := newAuthFixture(t)
	now := time.Now()

	other := NewAuthService(newFakeAccountStore(account), nil, "different-secret", 30*time.Minute, bcrypt.MinCost, zerolog.Nop())
	token, err := other.GenerateToken(account, now)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
