package app

import "errors"

// ErrSnapshotRead and related errors describe validation and runtime failures.
var (
	ErrSnapshotRead     = errors.New("read snapshot")
	ErrMailerRequired   = errors.New("mailer is required")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
	ErrRunAlreadyActive = errors.New("reminder run already active")
)
