package policy

import (
	"testing"
	"time"

	"github.com/examgate/examgate-backend/internal/model"
)

func TestComputeStatus(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := base.Add(60 * time.Minute)

	tests := []struct {
		name      string
		published bool
		start     *time.Time
		endAt     *time.Time
		startBuf  int
		endBuf    int
		now       time.Time
		expect    model.TestStatus
	}{
		{name: "unpublished is draft", published: false, now: base, expect: model.TestStatusDraft},
		{name: "unpublished ignores schedule", published: false, start: &base, endAt: &end, now: base.Add(30 * time.Minute), expect: model.TestStatusDraft},
		{name: "no schedule always active", published: true, now: base.Add(1000 * time.Hour), expect: model.TestStatusActive},
		{name: "one minute before start", published: true, start: &base, endAt: &end, now: base.Add(-time.Minute), expect: model.TestStatusScheduled},
		{name: "exactly at start", published: true, start: &base, endAt: &end, now: base, expect: model.TestStatusActive},
		{name: "mid window", published: true, start: &base, endAt: &end, now: base.Add(30 * time.Minute), expect: model.TestStatusActive},
		{name: "exactly at end", published: true, start: &base, endAt: &end, now: end, expect: model.TestStatusActive},
		{name: "one minute past end", published: true, start: &base, endAt: &end, now: end.Add(time.Minute), expect: model.TestStatusExpired},
		{name: "start buffer opens early", published: true, start: &base, endAt: &end, startBuf: 10, now: base.Add(-5 * time.Minute), expect: model.TestStatusActive},
		{name: "before start buffer", published: true, start: &base, endAt: &end, startBuf: 10, now: base.Add(-11 * time.Minute), expect: model.TestStatusScheduled},
		{name: "end buffer extends window", published: true, start: &base, endAt: &end, endBuf: 10, now: end.Add(5 * time.Minute), expect: model.TestStatusActive},
		{name: "past end buffer", published: true, start: &base, endAt: &end, endBuf: 10, now: end.Add(11 * time.Minute), expect: model.TestStatusExpired},
		{name: "start only, before", published: true, start: &base, now: base.Add(-time.Hour), expect: model.TestStatusScheduled},
		{name: "start only, after", published: true, start: &base, now: base.Add(100 * time.Hour), expect: model.TestStatusActive},
		{name: "end only, before", published: true, endAt: &end, now: base, expect: model.TestStatusActive},
		{name: "end only, after", published: true, endAt: &end, now: end.Add(time.Second), expect: model.TestStatusExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			test := &model.Test{
				Published:          tc.published,
				ScheduledStart:     tc.start,
				ScheduledEnd:       tc.endAt,
				StartBufferMinutes: tc.startBuf,
				EndBufferMinutes:   tc.endBuf,
			}
			if got := ComputeStatus(test, tc.now); got != tc.expect {
				t.Fatalf("expected %s, got %s", tc.expect, got)
			}
		})
	}
}

// A published test with a window passes through SCHEDULED → ACTIVE → EXPIRED
// monotonically; no other statuses and no transitions backwards.
func TestWindowMonotonicity(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)
	test := &model.Test{
		Published:          true,
		ScheduledStart:     &start,
		ScheduledEnd:       &end,
		StartBufferMinutes: 5,
		EndBufferMinutes:   5,
	}

	var prev model.TestStatus
	rank := map[model.TestStatus]int{
		model.TestStatusScheduled: 0,
		model.TestStatusActive:    1,
		model.TestStatusExpired:   2,
	}

	for now := start.Add(-2 * time.Hour); now.Before(end.Add(2 * time.Hour)); now = now.Add(time.Minute) {
		got := ComputeStatus(test, now)
		r, ok := rank[got]
		if !ok {
			t.Fatalf("unexpected status %s at %s", got, now)
		}
		if prev != "" && r < rank[prev] {
			t.Fatalf("status went backwards: %s after %s at %s", got, prev, now)
		}
		prev = got
	}
	if prev != model.TestStatusExpired {
		t.Fatalf("expected final status EXPIRED, got %s", prev)
	}
}

func TestIsAccessible(t *testing.T) {
	now := time.Now()
	if IsAccessible(&model.Test{Published: false}, now) {
		t.Fatal("draft test must not be accessible")
	}
	if !IsAccessible(&model.Test{Published: true}, now) {
		t.Fatal("published unscheduled test must be accessible")
	}
}
