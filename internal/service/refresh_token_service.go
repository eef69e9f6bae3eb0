package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/model"
)

var (
	ErrTokenInvalid = errors.New("refresh token is invalid")
	ErrTokenRevoked = errors.New("refresh token has been revoked")
	ErrTokenExpired = errors.New("refresh token has expired")
)

const rawTokenBytes = 64

// RefreshTokenService manages the bounded per-user set of refresh tokens.
// Raw token values exist only in transit; the store holds peppered SHA-256
// hashes, so a database leak exposes nothing usable.
type RefreshTokenService struct {
	tokens    TokenStore
	pepper    string
	ttl       time.Duration
	maxTokens int
	log       zerolog.Logger
}

// NewRefreshTokenService creates a new RefreshTokenService.
func NewRefreshTokenService(tokens TokenStore, pepper string, ttl time.Duration, maxTokens int, log zerolog.Logger) *RefreshTokenService {
	return &RefreshTokenService{
		tokens:    tokens,
		pepper:    pepper,
		ttl:       ttl,
		maxTokens: maxTokens,
		log:       log.With().Str("component", "refresh_token_service").Logger(),
	}
}

// Issue mints a new refresh token for the user, evicting the oldest active
// tokens first when the cap is already reached. Returns the raw token, which
// is never stored and cannot be recovered later.
func (s *RefreshTokenService) Issue(ctx context.Context, username, ip, userAgent string, now time.Time) (string, error) {
	if err := s.enforceCap(ctx, username); err != nil {
		return "", err
	}

	raw, hash, err := s.mint()
	if err != nil {
		return "", err
	}

	token := &model.RefreshToken{
		Username:  username,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, nil
}

// VerifyAndRotate validates a presented raw token and, in a single
// transaction, revokes it and issues its replacement. Rotation means a
// leaked token dies the moment its legitimate holder refreshes.
func (s *RefreshTokenService) VerifyAndRotate(ctx context.Context, raw, ip, userAgent string, now time.Time) (string, string, error) {
	hash := s.hash(raw)

	token, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		return "", "", fmt.Errorf("lookup refresh token: %w", err)
	}
	if token == nil {
		return "", "", ErrTokenInvalid
	}
	// The indexed lookup already matched; re-check in constant time so the
	// comparison itself leaks no timing signal.
	if subtle.ConstantTimeCompare([]byte(token.TokenHash), []byte(hash)) != 1 {
		return "", "", ErrTokenInvalid
	}
	if token.Revoked {
		s.log.Warn().Str("username", token.Username).Msg("revoked refresh token presented")
		return "", "", ErrTokenRevoked
	}
	if token.IsExpired(now) {
		return "", "", ErrTokenExpired
	}

	newRaw, newHash, err := s.mint()
	if err != nil {
		return "", "", err
	}
	replacement := &model.RefreshToken{
		Username:  token.Username,
		TokenHash: newHash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.tokens.Rotate(ctx, token.ID, replacement); err != nil {
		return "", "", fmt.Errorf("rotate refresh token: %w", err)
	}
	return newRaw, token.Username, nil
}

// Revoke invalidates the presented token. Unknown or already-revoked tokens
// are a no-op, so logout is safely idempotent.
func (s *RefreshTokenService) Revoke(ctx context.Context, raw string) error {
	token, err := s.tokens.GetByHash(ctx, s.hash(raw))
	if err != nil {
		return fmt.Errorf("lookup refresh token: %w", err)
	}
	if token == nil || token.Revoked {
		return nil
	}
	if err := s.tokens.Revoke(ctx, token.ID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Sweep deletes tokens that are expired or revoked. Called periodically by
// the sweep worker; deletion only reclaims rows, validation never depends
// on it.
func (s *RefreshTokenService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.tokens.DeleteDead(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("delete dead tokens: %w", err)
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("refresh token sweep")
	}
	return n, nil
}

func (s *RefreshTokenService) enforceCap(ctx context.Context, username string) error {
	if s.maxTokens <= 0 {
		return nil
	}
	active, err := s.tokens.CountActive(ctx, username)
	if err != nil {
		return fmt.Errorf("count active tokens: %w", err)
	}
	if over := active - s.maxTokens + 1; over > 0 {
		if err := s.tokens.RevokeOldest(ctx, username, over); err != nil {
			return fmt.Errorf("evict oldest tokens: %w", err)
		}
		s.log.Debug().Str("username", username).Int("evicted", over).Msg("refresh token cap enforced")
	}
	return nil
}

func (s *RefreshTokenService) mint() (raw, hash string, err error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, s.hash(raw), nil
}

func (s *RefreshTokenService) hash(raw string) string {
	sum := sha256.Sum256([]byte(raw + s.pepper))
	return hex.EncodeToString(sum[:])
}
