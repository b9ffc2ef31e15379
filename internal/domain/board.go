package domain

import (
	"strings"
	"time"
)

// Board belongs to exactly one team and carries its own deadline.
type Board struct {
	ID       string
	TeamID   string
	Name     string
	Code     string
	Deadline time.Time
}

// BoardInput holds write-time values for creating one board.
type BoardInput struct {
	ID       string
	TeamID   string
	Name     string
	Code     string
	Deadline time.Time
}

// NewBoard validates and normalizes one board.
func NewBoard(in BoardInput) (Board, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TeamID = strings.TrimSpace(in.TeamID)
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))

	if in.ID == "" {
		return Board{}, ErrInvalidID
	}
	if in.TeamID == "" {
		return Board{}, ErrInvalidTeamID
	}
	if in.Name == "" {
		return Board{}, ErrInvalidName
	}
	if in.Deadline.IsZero() {
		return Board{}, ErrInvalidDeadline
	}

	return Board{
		ID:       in.ID,
		TeamID:   in.TeamID,
		Name:     in.Name,
		Code:     in.Code,
		Deadline: normalizeDeadline(in.Deadline),
	}, nil
}

// IsOverdue reports whether the board deadline is at or before now.
func (b Board) IsOverdue(now time.Time) bool {
	return !b.Deadline.After(now)
}

func normalizeDeadline(deadline time.Time) time.Time {
	return deadline.UTC().Truncate(time.Second)
}
