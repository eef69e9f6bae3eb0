package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"github.com/examgate/examgate-backend/internal/model"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid access token")
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int        `json:"user_id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

// AuthService handles authentication against the account directory and the
// access/refresh token pair. All roles share one login path; the username is
// resolved by a single directory lookup that yields the role.
type AuthService struct {
	accounts   AccountStore
	refresh    *RefreshTokenService
	jwtSecret  []byte
	jwtExpiry  time.Duration
	bcryptCost int
	log        zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(accounts AccountStore, refresh *RefreshTokenService, jwtSecret string, jwtExpiry time.Duration, bcryptCost int, log zerolog.Logger) *AuthService {
	return &AuthService{
		accounts:   accounts,
		refresh:    refresh,
		jwtSecret:  []byte(jwtSecret),
		jwtExpiry:  jwtExpiry,
		bcryptCost: bcryptCost,
		log:        log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login authenticates any role and returns an access/refresh token pair.
// Unknown username and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password, ip, userAgent string, now time.Time) (*model.LoginResponse, error) {
	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		// Burn a bcrypt round anyway so a miss costs the same as a mismatch.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := s.CheckPassword(account.PasswordHash, password); err != nil {
		return nil, err
	}

	access, err := s.GenerateToken(account, now)
	if err != nil {
		return nil, err
	}
	refresh, err := s.refresh.Issue(ctx, account.Username, ip, userAgent, now)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("username", account.Username).Str("role", string(account.Role)).Msg("login")
	return &model.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		Account:      *account,
	}, nil
}

// Refresh rotates the presented refresh token and mints a fresh access token.
func (s *AuthService) Refresh(ctx context.Context, rawToken, ip, userAgent string, now time.Time) (*model.LoginResponse, error) {
	newRaw, username, err := s.refresh.VerifyAndRotate(ctx, rawToken, ip, userAgent, now)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		return nil, ErrTokenInvalid
	}

	access, err := s.GenerateToken(account, now)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{
		AccessToken:  access,
		RefreshToken: newRaw,
		Account:      *account,
	}, nil
}

// Logout revokes the presented refresh token. Idempotent.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	return s.refresh.Revoke(ctx, rawToken)
}

// GenerateToken creates a short-lived signed JWT for the account.
func (s *AuthService) GenerateToken(account *model.Account, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(account.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
		UserID:   account.ID,
		Username: account.Username,
		Role:     account.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
