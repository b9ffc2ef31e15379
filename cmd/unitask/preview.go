package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/evanschultz/unitask/internal/adapters/mail"
	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/config"
)

var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// filterReminders keeps the reminder for one address. An empty address keeps all.
func filterReminders(reminders []app.Reminder, email string) []app.Reminder {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return reminders
	}
	out := make([]app.Reminder, 0, 1)
	for _, r := range reminders {
		if r.Email == email {
			out = append(out, r)
		}
	}
	return out
}

// reminderCounts summarizes one reminder for the preview table.
type reminderCounts struct {
	teams   int
	boards  int
	overdue int
	tasks   int
}

func countReminder(r app.Reminder) reminderCounts {
	var c reminderCounts
	for _, entry := range r.Teams {
		boards := r.BoardsFor(entry)
		if len(boards) == 0 {
			continue
		}
		c.teams++
		for _, b := range boards {
			c.boards++
			if b.Overdue {
				c.overdue++
			}
			c.tasks += len(b.Tasks)
		}
	}
	return c
}

// writePlanTable prints one row per recipient followed by a run summary line.
func writePlanTable(w io.Writer, plan app.Plan) error {
	rows := make([][]string, 0, len(plan.Reminders))
	for _, r := range plan.Reminders {
		c := countReminder(r)
		rows = append(rows, []string{
			r.Email,
			r.DisplayName,
			strconv.Itoa(c.teams),
			strconv.Itoa(c.boards),
			strconv.Itoa(c.overdue),
			strconv.Itoa(c.tasks),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers("RECIPIENT", "NAME", "TEAMS", "BOARDS", "OVERDUE", "TASKS").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return fmt.Errorf("write preview table: %w", err)
	}
	_, err := fmt.Fprintf(w, "run %s at %s: %d reminders, %d opted out, %d stale boards\n",
		plan.RunID, plan.Now.UTC().Format(time.RFC3339), len(plan.Reminders), plan.OptedOut, plan.StaleBoards)
	if err != nil {
		return fmt.Errorf("write preview summary: %w", err)
	}
	return nil
}

// renderReminders prints every reminder through a styled console mailer.
func renderReminders(ctx context.Context, w io.Writer, cfg config.MailConfig, reminders []app.Reminder) error {
	console, err := mail.NewConsoleMailer(w, mail.Renderer{
		SubjectPrefix: cfg.SubjectPrefix,
		BaseURL:       cfg.BaseURL,
	}, mail.ConsoleOptions{From: cfg.From, Styled: true})
	if err != nil {
		return err
	}
	for _, r := range reminders {
		if err := console.SendReminder(ctx, r); err != nil {
			return fmt.Errorf("render reminder for %s: %w", r.Email, err)
		}
	}
	return nil
}
