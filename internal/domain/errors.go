package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidLeader   = errors.New("invalid team leader")
	ErrInvalidDeadline = errors.New("invalid deadline")
	ErrInvalidTeamID   = errors.New("invalid team id")
	ErrInvalidBoardID  = errors.New("invalid board id")
)
