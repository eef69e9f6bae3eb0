package model

import "time"

// RefreshToken is one entry in a user's bounded set of refresh tokens. The
// raw token value is never persisted — only a peppered SHA-256 hash.
type RefreshToken struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	TokenHash  string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Revoked    bool       `json:"revoked"`
	IPAddress  string     `json:"ip_address"`
	UserAgent  string     `json:"user_agent"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// IsExpired reports whether the token is past its expiry at the given time.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RefreshRequest is the payload for rotating a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,min=16"`
}

// LogoutRequest is the payload for revoking a refresh token on logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,min=16"`
}
