package app

import (
	"context"

	"github.com/evanschultz/unitask/internal/domain"
)

// TeamReader lists every team in one full scan.
type TeamReader interface {
	ListTeams(context.Context) ([]domain.Team, error)
}

// BoardReader lists every board in one full scan.
type BoardReader interface {
	ListBoards(context.Context) ([]domain.Board, error)
}

// TaskReader lists every task in one full scan.
type TaskReader interface {
	ListTasks(context.Context) ([]domain.Task, error)
}

// UserReader lists every user in one full scan.
type UserReader interface {
	ListUsers(context.Context) ([]domain.User, error)
}

// Repository represents the read side consumed by reminder runs.
type Repository interface {
	TeamReader
	BoardReader
	TaskReader
	UserReader
}

// Writer represents the write side used by snapshot imports.
type Writer interface {
	UpsertTeam(context.Context, domain.Team) error
	UpsertBoard(context.Context, domain.Board) error
	UpsertTask(context.Context, domain.Task) error
	UpsertUser(context.Context, domain.User) error
}

// TxWriter is a Writer that can group upserts so they commit together or not at all.
type TxWriter interface {
	Writer
	WithinTx(ctx context.Context, fn func(Writer) error) error
}

// Mailer composes and delivers one reminder. Transport errors stay with the caller's report.
type Mailer interface {
	SendReminder(context.Context, Reminder) error
}

// Logger is the structured logging surface used by the app layer.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// nopLogger discards every event.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
