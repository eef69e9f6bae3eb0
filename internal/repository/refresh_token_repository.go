package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/examgate/examgate-backend/internal/model"
)

const tokenColumns = `id, username, token_hash, created_at, expires_at, revoked,
	ip_address, user_agent, last_used_at`

// RefreshTokenRepository handles refresh token data access. Only peppered
// hashes ever reach this layer; raw tokens stay in the service.
type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

func scanToken(row pgx.Row) (*model.RefreshToken, error) {
	t := &model.RefreshToken{}
	err := row.Scan(&t.ID, &t.Username, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt,
		&t.Revoked, &t.IPAddress, &t.UserAgent, &t.LastUsedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new token row.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *model.RefreshToken) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO refresh_tokens (username, token_hash, expires_at, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		t.Username, t.TokenHash, t.ExpiresAt, t.IPAddress, t.UserAgent,
	).Scan(&t.ID, &t.CreatedAt)
}

// GetByHash retrieves a token by its hash. Returns (nil, nil) when absent.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	t, err := scanToken(r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Rotate atomically revokes the used token and inserts its replacement. A
// used refresh token can never be replayed because both writes share one
// transaction.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, usedID int64, replacement *model.RefreshToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, last_used_at = NOW()
		 WHERE id = $1 AND NOT revoked`, usedID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("token already revoked")
	}

	if err := tx.QueryRow(ctx,
		`INSERT INTO refresh_tokens (username, token_hash, expires_at, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		replacement.Username, replacement.TokenHash, replacement.ExpiresAt,
		replacement.IPAddress, replacement.UserAgent,
	).Scan(&replacement.ID, &replacement.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Revoke marks a token revoked. Revoking an already-revoked token is a no-op
// success.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1`, id)
	return err
}

// CountActive counts non-revoked tokens of a user.
func (r *RefreshTokenRepository) CountActive(ctx context.Context, username string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM refresh_tokens WHERE username = $1 AND NOT revoked`,
		username).Scan(&n)
	return n, err
}

// RevokeOldest revokes the n oldest non-revoked tokens of a user, by
// created_at ascending. This is the evict-oldest admission control run
// before every issue.
func (r *RefreshTokenRepository) RevokeOldest(ctx context.Context, username string, n int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE
		 WHERE id IN (
		     SELECT id FROM refresh_tokens
		     WHERE username = $1 AND NOT revoked
		     ORDER BY created_at ASC
		     LIMIT $2
		 )`, username, n)
	return err
}

// DeleteDead deletes expired or revoked rows. Pure garbage collection, not
// part of the authorization path.
func (r *RefreshTokenRepository) DeleteDead(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1 OR revoked`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
