// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"time"

	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/domain"
)

// Planner computes a reminder plan without sending.
type Planner interface {
	Preview(context.Context) (app.Plan, error)
}

// Runner executes one reminder run.
type Runner interface {
	Run(context.Context) (app.RunReport, error)
}

// DigestsView lists every pending reminder of one plan.
type DigestsView struct {
	RunID       string          `json:"run_id"`
	Now         time.Time       `json:"now"`
	StaleBoards int             `json:"stale_boards"`
	OptedOut    int             `json:"opted_out"`
	Recipients  []RecipientView `json:"recipients"`
}

type RecipientView struct {
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Teams       []TeamView `json:"teams"`
}

type TeamView struct {
	TeamID   string      `json:"team_id"`
	TeamName string      `json:"team_name"`
	Boards   []BoardView `json:"boards"`
}

type BoardView struct {
	BoardID   string     `json:"board_id"`
	Name      string     `json:"name"`
	Code      string     `json:"code,omitempty"`
	Deadline  time.Time  `json:"deadline"`
	Overdue   bool       `json:"overdue"`
	Remaining string     `json:"remaining"`
	Tasks     []TaskView `json:"tasks"`
}

type TaskView struct {
	TaskID    string    `json:"task_id"`
	Name      string    `json:"name"`
	Deadline  time.Time `json:"deadline"`
	Status    string    `json:"status"`
	Urgency   string    `json:"urgency"`
	Remaining string    `json:"remaining"`
}

// RunView summarizes one finished run.
type RunView struct {
	RunID      string    `json:"run_id"`
	Now        time.Time `json:"now"`
	Boards     int       `json:"boards"`
	Digests    int       `json:"digests"`
	Attempted  int       `json:"attempted"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	OptedOut   int       `json:"opted_out"`
	FailedTo   []string  `json:"failed_recipients,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// NewDigestsView renders plan. window labels task urgency.
func NewDigestsView(plan app.Plan, window time.Duration) DigestsView {
	out := DigestsView{
		RunID:       plan.RunID,
		Now:         plan.Now,
		StaleBoards: plan.StaleBoards,
		OptedOut:    plan.OptedOut,
		Recipients:  make([]RecipientView, 0, len(plan.Reminders)),
	}
	for _, reminder := range plan.Reminders {
		out.Recipients = append(out.Recipients, NewRecipientView(reminder, plan.Now, window))
	}
	return out
}

// NewRecipientView renders one reminder as of now.
func NewRecipientView(reminder app.Reminder, now time.Time, window time.Duration) RecipientView {
	out := RecipientView{
		Email:       reminder.Email,
		DisplayName: reminder.DisplayName,
		Teams:       make([]TeamView, 0, len(reminder.Teams)),
	}
	for _, entry := range reminder.Teams {
		team := TeamView{TeamID: entry.TeamID, TeamName: entry.TeamName}
		for _, b := range reminder.BoardsFor(entry) {
			board := BoardView{
				BoardID:   b.Board.ID,
				Name:      b.Board.Name,
				Code:      b.Board.Code,
				Deadline:  b.Board.Deadline,
				Overdue:   b.Overdue,
				Remaining: domain.RemainingUntil(b.Board.Deadline, now).String(),
			}
			for _, task := range b.Tasks {
				board.Tasks = append(board.Tasks, TaskView{
					TaskID:    task.ID,
					Name:      task.Name,
					Deadline:  task.Deadline,
					Status:    task.Status,
					Urgency:   domain.ClassifyTask(task, now, window).String(),
					Remaining: domain.RemainingUntil(task.Deadline, now).String(),
				})
			}
			team.Boards = append(team.Boards, board)
		}
		out.Teams = append(out.Teams, team)
	}
	return out
}

// NewRunView flattens report.
func NewRunView(report app.RunReport) RunView {
	return RunView{
		RunID:      report.RunID,
		Now:        report.Now,
		Boards:     report.Boards,
		Digests:    report.Digests,
		Attempted:  report.Dispatch.Attempted,
		Sent:       report.Dispatch.Sent,
		Failed:     report.Dispatch.Failed,
		OptedOut:   report.Dispatch.OptedOut,
		FailedTo:   report.Dispatch.FailedRecipients,
		DurationMS: report.Duration.Milliseconds(),
	}
}

// FindReminder returns the reminder addressed to email, which must already be normalized.
func FindReminder(plan app.Plan, email string) (app.Reminder, bool) {
	for _, reminder := range plan.Reminders {
		if reminder.Email == email {
			return reminder, true
		}
	}
	return app.Reminder{}, false
}

// RunDetached runs runner without the caller's cancellation. Only timeout bounds the run.
func RunDetached(ctx context.Context, runner Runner, timeout time.Duration) (app.RunReport, error) {
	runCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	return runner.Run(runCtx)
}
