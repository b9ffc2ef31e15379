package domain

import (
	"fmt"
	"time"
)

// Urgency classifies one deadline relative to the current instant.
type Urgency int

// Urgency values.
const (
	UrgencyNone Urgency = iota
	UrgencyUrgent
	UrgencyOverdue
)

// DefaultUrgencyWindow is the look-ahead used when no window is configured.
const DefaultUrgencyWindow = 24 * time.Hour

// String returns the lower-case urgency label.
func (u Urgency) String() string {
	switch u {
	case UrgencyUrgent:
		return "urgent"
	case UrgencyOverdue:
		return "overdue"
	default:
		return "none"
	}
}

// NeedsReminder reports whether the urgency should be surfaced to members.
func (u Urgency) NeedsReminder() bool {
	return u == UrgencyUrgent || u == UrgencyOverdue
}

// Classify returns UrgencyNone for completed work, UrgencyOverdue once the
// deadline is at or before now, and UrgencyUrgent while the deadline lies
// within window of now. A non-positive window disables the urgent band.
func Classify(deadline time.Time, status string, now time.Time, window time.Duration) Urgency {
	if IsDoneStatus(status) {
		return UrgencyNone
	}
	if !deadline.After(now) {
		return UrgencyOverdue
	}
	if window > 0 && deadline.Sub(now) <= window {
		return UrgencyUrgent
	}
	return UrgencyNone
}

// ClassifyTask classifies one task by its own deadline and status.
func ClassifyTask(task Task, now time.Time, window time.Duration) Urgency {
	return Classify(task.Deadline, task.Status, now, window)
}

// Remaining is the time left until a deadline, broken down for display.
type Remaining struct {
	Days    int
	Hours   int
	Minutes int
	Overdue bool
	Left    time.Duration
}

// RemainingUntil breaks the time until deadline into whole days (rounded up)
// plus the hour and minute remainder of the partial day. Passed deadlines
// are flagged Overdue with zeroed counters.
func RemainingUntil(deadline, now time.Time) Remaining {
	left := deadline.Sub(now)
	if left <= 0 {
		return Remaining{Overdue: true}
	}
	const day = 24 * time.Hour
	partial := left % day
	return Remaining{
		Days:    int((left + day - 1) / day),
		Hours:   int(partial / time.Hour),
		Minutes: int((partial % time.Hour) / time.Minute),
		Left:    left,
	}
}

// String renders "OVERDUE", "Xh Ym" under a day, or "N day(s)".
func (r Remaining) String() string {
	if r.Overdue {
		return "OVERDUE"
	}
	if r.Left < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", r.Hours, r.Minutes)
	}
	if r.Days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", r.Days)
}
