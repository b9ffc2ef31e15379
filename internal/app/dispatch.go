package app

import (
	"context"
	"sync"
	"time"

	"github.com/evanschultz/unitask/internal/domain"
	"golang.org/x/sync/errgroup"
)

// defaultDispatchConcurrency bounds in-flight reminder sends.
const defaultDispatchConcurrency = 4

// Reminder is everything a mailer needs to compose one user's reminder.
type Reminder struct {
	Email       string
	DisplayName string
	Teams       []TeamEntry
	// Boards is the full per-team lookup; only Teams' entries are rendered.
	Boards      BoardsByTeam
	GeneratedAt time.Time
}

// BoardsFor returns the reportable boards of one team entry.
func (r Reminder) BoardsFor(entry TeamEntry) []BoardWithTasks {
	return r.Boards[entry.TeamID]
}

// DispatchOptions tunes one dispatch pass.
type DispatchOptions struct {
	Concurrency int
	Now         time.Time
	Logger      Logger
}

// DispatchReport summarizes the outcome of one dispatch pass.
type DispatchReport struct {
	Attempted int
	Sent      int
	Failed    int
	// OptedOut counts users with digest entries but notifications turned off.
	OptedOut int
	// FailedRecipients lists emails whose send returned an error.
	FailedRecipients []string
}

// SelectRecipients builds one reminder per opted-in user that has digest entries,
// in user order. Duplicate emails are sent once. It returns the reminders and the
// number of users skipped for having notifications off.
func SelectRecipients(digests DigestByUser, users []domain.User, boardsByTeam BoardsByTeam, now time.Time) ([]Reminder, int) {
	out := make([]Reminder, 0, len(digests))
	seen := map[string]struct{}{}
	optedOut := 0
	for _, user := range users {
		entries, ok := digests[user.Email]
		if !ok || len(entries) == 0 {
			continue
		}
		if !user.NotificationOn {
			optedOut++
			continue
		}
		if _, dup := seen[user.Email]; dup {
			continue
		}
		seen[user.Email] = struct{}{}
		out = append(out, Reminder{
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Teams:       append([]TeamEntry(nil), entries...),
			Boards:      boardsByTeam,
			GeneratedAt: now,
		})
	}
	return out, optedOut
}

// Dispatch selects recipients and sends their reminders.
func Dispatch(ctx context.Context, digests DigestByUser, users []domain.User, boardsByTeam BoardsByTeam, mailer Mailer, opts DispatchOptions) (DispatchReport, error) {
	if mailer == nil {
		return DispatchReport{}, ErrMailerRequired
	}
	reminders, optedOut := SelectRecipients(digests, users, boardsByTeam, opts.Now)
	report := SendReminders(ctx, reminders, mailer, opts)
	report.OptedOut = optedOut
	return report, nil
}

// SendReminders issues one send per reminder with bounded concurrency. A failed send
// is logged and counted; it never cancels the others and is not retried.
func SendReminders(ctx context.Context, reminders []Reminder, mailer Mailer, opts DispatchOptions) DispatchReport {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultDispatchConcurrency
	}

	var (
		mu     sync.Mutex
		report = DispatchReport{Attempted: len(reminders)}
	)
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, reminder := range reminders {
		g.Go(func() error {
			err := mailer.SendReminder(ctx, reminder)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.FailedRecipients = append(report.FailedRecipients, reminder.Email)
				logger.Error("reminder send failed", "email", reminder.Email, "teams", len(reminder.Teams), "err", err)
				return nil
			}
			report.Sent++
			logger.Debug("reminder sent", "email", reminder.Email, "teams", len(reminder.Teams))
			return nil
		})
	}
	_ = g.Wait()
	return report
}
