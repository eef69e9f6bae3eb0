package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/service"
)

// TokenSweepWorker periodically deletes expired and revoked refresh tokens.
// Validation never depends on the sweep; it only keeps the table small.
type TokenSweepWorker struct {
	tokens   *service.RefreshTokenService
	interval time.Duration
	log      zerolog.Logger
}

// NewTokenSweepWorker creates a new TokenSweepWorker.
func NewTokenSweepWorker(tokens *service.RefreshTokenService, interval time.Duration, log zerolog.Logger) *TokenSweepWorker {
	return &TokenSweepWorker{
		tokens:   tokens,
		interval: interval,
		log:      log.With().Str("component", "token_sweep_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *TokenSweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			if _, err := w.tokens.Sweep(ctx, time.Now()); err != nil {
				w.log.Error().Err(err).Msg("Sweep error")
			}
		}
	}
}
