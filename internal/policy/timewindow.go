// Package policy holds the pure access-control rules for tests: the time
// window computation and the attempt admission decision. Nothing here talks
// to the network or clock — callers pass `now` explicitly, and every check is
// evaluated fresh because accessibility is time-dependent.
package policy

import (
	"time"

	"github.com/examgate/examgate-backend/internal/model"
)

// ComputeStatus derives a test's accessibility status at the given instant.
//
// Rules, in order:
//   - unpublished tests are DRAFT regardless of schedule;
//   - before scheduled start minus the start buffer: SCHEDULED;
//   - after scheduled end plus the end buffer: EXPIRED;
//   - otherwise ACTIVE. A published test with no schedule is always ACTIVE.
func ComputeStatus(t *model.Test, now time.Time) model.TestStatus {
	if !t.Published {
		return model.TestStatusDraft
	}

	if t.ScheduledStart != nil {
		opensAt := t.ScheduledStart.Add(-time.Duration(t.StartBufferMinutes) * time.Minute)
		if now.Before(opensAt) {
			return model.TestStatusScheduled
		}
	}

	if t.ScheduledEnd != nil {
		closesAt := t.ScheduledEnd.Add(time.Duration(t.EndBufferMinutes) * time.Minute)
		if now.After(closesAt) {
			return model.TestStatusExpired
		}
	}

	return model.TestStatusActive
}

// IsAccessible reports whether the test can be taken at the given instant.
// The IP allow-list and secure-browser flag are advisory fields enforced by
// the request layer (see middleware.TestAccessGuard), not here.
func IsAccessible(t *model.Test, now time.Time) bool {
	return ComputeStatus(t, now) == model.TestStatusActive
}
