package domain

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour
	cases := []struct {
		name     string
		deadline time.Time
		status   string
		want     Urgency
	}{
		{name: "done far past", deadline: now.Add(-30 * 24 * time.Hour), status: StatusDone, want: UrgencyNone},
		{name: "done within window", deadline: now.Add(time.Hour), status: StatusDone, want: UrgencyNone},
		{name: "exactly now", deadline: now, status: StatusToDo, want: UrgencyOverdue},
		{name: "past", deadline: now.Add(-time.Minute), status: StatusInProgress, want: UrgencyOverdue},
		{name: "one hour left", deadline: now.Add(time.Hour), status: StatusToDo, want: UrgencyUrgent},
		{name: "window edge", deadline: now.Add(window), status: StatusToDo, want: UrgencyUrgent},
		{name: "just beyond window", deadline: now.Add(window + time.Second), status: StatusToDo, want: UrgencyNone},
		{name: "far future", deadline: now.Add(30 * 24 * time.Hour), status: "Review", want: UrgencyNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.deadline, tc.status, now, window); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyWithoutWindowOnlyReportsOverdue(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if got := Classify(now.Add(time.Minute), StatusToDo, now, 0); got != UrgencyNone {
		t.Fatalf("expected none with disabled window, got %s", got)
	}
	if got := Classify(now.Add(-time.Minute), StatusToDo, now, 0); got != UrgencyOverdue {
		t.Fatalf("expected overdue with disabled window, got %s", got)
	}
}

func TestRemainingUntil(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		deadline time.Time
		want     Remaining
		text     string
	}{
		{
			name:     "overdue",
			deadline: now.Add(-3 * time.Hour),
			want:     Remaining{Overdue: true},
			text:     "OVERDUE",
		},
		{
			name:     "at deadline",
			deadline: now,
			want:     Remaining{Overdue: true},
			text:     "OVERDUE",
		},
		{
			name:     "hours and minutes",
			deadline: now.Add(5*time.Hour + 12*time.Minute),
			want:     Remaining{Days: 1, Hours: 5, Minutes: 12, Left: 5*time.Hour + 12*time.Minute},
			text:     "5h 12m",
		},
		{
			name:     "exactly one day",
			deadline: now.Add(24 * time.Hour),
			want:     Remaining{Days: 1, Left: 24 * time.Hour},
			text:     "1 day",
		},
		{
			name:     "partial days round up",
			deadline: now.Add(2*24*time.Hour + 90*time.Minute),
			want:     Remaining{Days: 3, Hours: 1, Minutes: 30, Left: 2*24*time.Hour + 90*time.Minute},
			text:     "3 days",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RemainingUntil(tc.deadline, now)
			if got != tc.want {
				t.Fatalf("RemainingUntil() = %#v, want %#v", got, tc.want)
			}
			if got.String() != tc.text {
				t.Fatalf("String() = %q, want %q", got.String(), tc.text)
			}
		})
	}
}

func TestUrgencyNeedsReminder(t *testing.T) {
	if UrgencyNone.NeedsReminder() {
		t.Fatal("expected none to be silent")
	}
	if !UrgencyUrgent.NeedsReminder() || !UrgencyOverdue.NeedsReminder() {
		t.Fatal("expected urgent and overdue to need reminders")
	}
}
