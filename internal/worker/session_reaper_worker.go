package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/repository"
	"github.com/examgate/examgate-backend/internal/service"
)

// ReapGrace pads the duration check so the reaper never races a student's
// final submit; a strict-mode save past the limit already times the session
// out immediately.
const ReapGrace = 30 * time.Second

// SessionReaperWorker times out IN_PROGRESS sessions that ran past their
// test duration, covering students who closed the tab and never came back.
type SessionReaperWorker struct {
	sessionRepo *repository.StudentExamRepository
	sessions    *service.ExamSessionService
	interval    time.Duration
	log         zerolog.Logger
}

// NewSessionReaperWorker creates a new SessionReaperWorker.
func NewSessionReaperWorker(
	sessionRepo *repository.StudentExamRepository,
	sessions *service.ExamSessionService,
	interval time.Duration,
	log zerolog.Logger,
) *SessionReaperWorker {
	return &SessionReaperWorker{
		sessionRepo: sessionRepo,
		sessions:    sessions,
		interval:    interval,
		log:         log.With().Str("component", "session_reaper_worker").Logger(),
	}
}

// Start begins the reaper loop. Call in a goroutine.
func (w *SessionReaperWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.reap(ctx)
		}
	}
}

func (w *SessionReaperWorker) reap(ctx context.Context) {
	now := time.Now()

	ids, err := w.sessionRepo.ListOverdueIDs(ctx, now, ReapGrace)
	if err != nil {
		w.log.Error().Err(err).Msg("Overdue scan error")
		return
	}

	for _, id := range ids {
		if _, err := w.sessions.TimeOut(ctx, id, now); err != nil {
			// The student may have submitted between the scan and here.
			if errors.Is(err, service.ErrSessionAlreadyTerminal) {
				continue
			}
			w.log.Error().Err(err).Str("session_id", id.String()).Msg("Time-out error")
			continue
		}
		w.log.Info().Str("session_id", id.String()).Msg("Session timed out by reaper")
	}
}
