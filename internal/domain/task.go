package domain

import (
	"strings"
	"time"
)

// Status names are an open set; only StatusDone has meaning to reminders.
const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)

type Task struct {
	ID       string
	BoardID  string
	Name     string
	Deadline time.Time
	Status   string
	Pinned   bool
}

type TaskInput struct {
	ID       string
	BoardID  string
	Name     string
	Deadline time.Time
	Status   string
	Pinned   bool
}

func NewTask(in TaskInput) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.BoardID = strings.TrimSpace(in.BoardID)
	in.Name = strings.TrimSpace(in.Name)
	in.Status = strings.TrimSpace(in.Status)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.BoardID == "" {
		return Task{}, ErrInvalidBoardID
	}
	if in.Name == "" {
		return Task{}, ErrInvalidName
	}
	if in.Deadline.IsZero() {
		return Task{}, ErrInvalidDeadline
	}
	if in.Status == "" {
		in.Status = StatusToDo
	}

	return Task{
		ID:       in.ID,
		BoardID:  in.BoardID,
		Name:     in.Name,
		Deadline: normalizeDeadline(in.Deadline),
		Status:   in.Status,
		Pinned:   in.Pinned,
	}, nil
}

// IsDone reports whether the task carries the completion status.
func (t Task) IsDone() bool {
	return IsDoneStatus(t.Status)
}

// IsDoneStatus matches the completion sentinel exactly.
func IsDoneStatus(status string) bool {
	return status == StatusDone
}
