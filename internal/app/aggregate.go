package app

import (
	"time"

	"github.com/evanschultz/unitask/internal/domain"
)

// Policy holds the time thresholds applied while selecting reminder content.
type Policy struct {
	// UrgencyWindow is the look-ahead that marks an open task urgent.
	UrgencyWindow time.Duration
	// OverdueCutoff stops reminding about work overdue for longer than this. Zero disables it.
	OverdueCutoff time.Duration
}

// DefaultPolicy returns the thresholds used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{UrgencyWindow: domain.DefaultUrgencyWindow}
}

// TasksByBoard maps board id to its open tasks. A missing key means no open tasks.
type TasksByBoard map[string][]domain.Task

// BoardWithTasks is one board paired with the tasks its members must hear about.
type BoardWithTasks struct {
	Board   domain.Board
	Overdue bool
	Tasks   []domain.Task
}

// BoardsByTeam maps team id to its boards that have relevant tasks.
type BoardsByTeam map[string][]BoardWithTasks

// TeamEntry identifies one team inside a user's digest.
type TeamEntry struct {
	TeamID   string
	TeamName string
}

// DigestByUser maps member email to the teams they must hear about.
type DigestByUser map[string][]TeamEntry

// GroupTasksByBoard drops completed tasks and groups the rest by board, keeping input order.
func GroupTasksByBoard(tasks []domain.Task) TasksByBoard {
	out := TasksByBoard{}
	for _, task := range tasks {
		if task.IsDone() {
			continue
		}
		out[task.BoardID] = append(out[task.BoardID], task)
	}
	return out
}

// GroupBoardsByTeam selects each board's relevant tasks and groups the boards by team.
// An overdue board reports every open task; otherwise only urgent or overdue tasks count.
func GroupBoardsByTeam(boards []domain.Board, tasksByBoard TasksByBoard, now time.Time, policy Policy) BoardsByTeam {
	out := BoardsByTeam{}
	for _, board := range boards {
		relevant, overdue := relevantTasks(board, tasksByBoard[board.ID], now, policy)
		if len(relevant) == 0 {
			continue
		}
		out[board.TeamID] = append(out[board.TeamID], BoardWithTasks{
			Board:   board,
			Overdue: overdue,
			Tasks:   relevant,
		})
	}
	return out
}

// relevantTasks returns the reportable subset of one board's open tasks.
func relevantTasks(board domain.Board, open []domain.Task, now time.Time, policy Policy) ([]domain.Task, bool) {
	if len(open) == 0 {
		return nil, false
	}
	if board.IsOverdue(now) {
		if pastCutoff(board.Deadline, now, policy.OverdueCutoff) {
			return nil, true
		}
		return append([]domain.Task(nil), open...), true
	}

	out := make([]domain.Task, 0, len(open))
	for _, task := range open {
		urgency := domain.ClassifyTask(task, now, policy.UrgencyWindow)
		if !urgency.NeedsReminder() {
			continue
		}
		if urgency == domain.UrgencyOverdue && pastCutoff(task.Deadline, now, policy.OverdueCutoff) {
			continue
		}
		out = append(out, task)
	}
	return out, false
}

// pastCutoff reports whether deadline passed more than cutoff ago.
func pastCutoff(deadline, now time.Time, cutoff time.Duration) bool {
	return cutoff > 0 && now.Sub(deadline) > cutoff
}

// BuildUserDigests fans each team with reportable boards out to its members.
// Users appear only when at least one of their teams needs a reminder.
func BuildUserDigests(teams []domain.Team, boardsByTeam BoardsByTeam) DigestByUser {
	out := DigestByUser{}
	for _, team := range teams {
		if len(boardsByTeam[team.ID]) == 0 {
			continue
		}
		entry := TeamEntry{TeamID: team.ID, TeamName: team.Name}
		for _, member := range team.Members {
			out[member] = append(out[member], entry)
		}
	}
	return out
}

// KnownTeamBoards drops boards whose team is absent from teams. It returns the kept
// boards and the number skipped; stale references are not an error.
func KnownTeamBoards(boards []domain.Board, teams []domain.Team) ([]domain.Board, int) {
	known := make(map[string]struct{}, len(teams))
	for _, team := range teams {
		known[team.ID] = struct{}{}
	}
	out := make([]domain.Board, 0, len(boards))
	skipped := 0
	for _, board := range boards {
		if _, ok := known[board.TeamID]; !ok {
			skipped++
			continue
		}
		out = append(out, board)
	}
	return out, skipped
}
