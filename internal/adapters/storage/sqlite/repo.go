package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

var (
	_ app.Repository = (*Repository)(nil)
	_ app.TxWriter   = (*Repository)(nil)
	_ app.Writer     = writer{}
)

// Repository stores teams, boards, tasks and users in one SQLite file.
type Repository struct {
	db *sql.DB
}

// Open opens the database at path, creating parent dirs and schema as needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a shared in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			leader_email TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS team_members (
			team_id TEXT NOT NULL,
			email TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY(team_id, email),
			FOREIGN KEY(team_id) REFERENCES teams(id) ON DELETE CASCADE
		);`,
		// boards.team_id is not a foreign key: boards may outlive their team and are skipped at read time.
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			name TEXT NOT NULL,
			code TEXT NOT NULL DEFAULT '',
			deadline TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL,
			name TEXT NOT NULL,
			deadline TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'To Do',
			pinned INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			notification_on INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_team_members_team_position ON team_members(team_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_boards_team ON boards(team_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_board_deadline ON tasks(board_id, deadline);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// ListTeams returns every team with members in stored order.
func (r *Repository) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, leader_email FROM teams ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Name, &team.Leader); err != nil {
			return nil, err
		}
		team.Leader = canonicalEmail(team.Leader)
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := r.listMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		teams[i].Members = members[teams[i].ID]
	}
	return teams, nil
}

// listMembers returns lower-cased member emails per team. Rows that collapse to
// the same address keep their first position.
func (r *Repository) listMembers(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT team_id, email FROM team_members ORDER BY team_id ASC, position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]string{}
	seen := map[string]struct{}{}
	for rows.Next() {
		var teamID, email string
		if err := rows.Scan(&teamID, &email); err != nil {
			return nil, err
		}
		email = canonicalEmail(email)
		key := teamID + "\x00" + email
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out[teamID] = append(out[teamID], email)
	}
	return out, rows.Err()
}

// ListBoards returns every board.
func (r *Repository) ListBoards(ctx context.Context) ([]domain.Board, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, team_id, name, code, deadline FROM boards ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Board
	for rows.Next() {
		var (
			board       domain.Board
			deadlineRaw string
		)
		if err := rows.Scan(&board.ID, &board.TeamID, &board.Name, &board.Code, &deadlineRaw); err != nil {
			return nil, err
		}
		deadline, err := parseTS(deadlineRaw)
		if err != nil {
			return nil, fmt.Errorf("parse board %q deadline %q: %w", board.ID, deadlineRaw, err)
		}
		board.Deadline = deadline
		out = append(out, board)
	}
	return out, rows.Err()
}

// ListTasks returns every task.
func (r *Repository) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, board_id, name, deadline, status, pinned FROM tasks ORDER BY board_id ASC, deadline ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// ListUsers returns every user with a lower-cased email.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email, display_name, notification_on FROM users ORDER BY email ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var (
			user domain.User
			on   int
		)
		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &on); err != nil {
			return nil, err
		}
		user.Email = canonicalEmail(user.Email)
		user.NotificationOn = on == 1
		out = append(out, user)
	}
	return out, rows.Err()
}

// WithinTx runs fn against a writer bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (r *Repository) WithinTx(ctx context.Context, fn func(app.Writer) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(writer{ex: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertTeam writes the team row and replaces its member list in one transaction.
func (r *Repository) UpsertTeam(ctx context.Context, team domain.Team) error {
	return r.WithinTx(ctx, func(w app.Writer) error {
		return w.UpsertTeam(ctx, team)
	})
}

// UpsertBoard inserts or replaces one board.
func (r *Repository) UpsertBoard(ctx context.Context, board domain.Board) error {
	return writer{ex: r.db}.UpsertBoard(ctx, board)
}

// UpsertTask inserts or replaces one task.
func (r *Repository) UpsertTask(ctx context.Context, task domain.Task) error {
	return writer{ex: r.db}.UpsertTask(ctx, task)
}

// UpsertUser inserts or replaces one user keyed by id.
func (r *Repository) UpsertUser(ctx context.Context, user domain.User) error {
	return writer{ex: r.db}.UpsertUser(ctx, user)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// writer issues upserts through one execer without opening transactions of its own.
type writer struct {
	ex execer
}

func (w writer) UpsertTeam(ctx context.Context, team domain.Team) error {
	if _, err := w.ex.ExecContext(ctx, `
		INSERT INTO teams(id, name, leader_email) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, leader_email = excluded.leader_email
	`, team.ID, team.Name, team.Leader); err != nil {
		return err
	}
	if _, err := w.ex.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, team.ID); err != nil {
		return err
	}
	for i, email := range team.Members {
		if _, err := w.ex.ExecContext(ctx, `INSERT INTO team_members(team_id, email, position) VALUES (?, ?, ?)`, team.ID, email, i); err != nil {
			return err
		}
	}
	return nil
}

func (w writer) UpsertBoard(ctx context.Context, board domain.Board) error {
	_, err := w.ex.ExecContext(ctx, `
		INSERT INTO boards(id, team_id, name, code, deadline) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			team_id = excluded.team_id,
			name = excluded.name,
			code = excluded.code,
			deadline = excluded.deadline
	`, board.ID, board.TeamID, board.Name, board.Code, ts(board.Deadline))
	return err
}

func (w writer) UpsertTask(ctx context.Context, task domain.Task) error {
	_, err := w.ex.ExecContext(ctx, `
		INSERT INTO tasks(id, board_id, name, deadline, status, pinned) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			board_id = excluded.board_id,
			name = excluded.name,
			deadline = excluded.deadline,
			status = excluded.status,
			pinned = excluded.pinned
	`, task.ID, task.BoardID, task.Name, ts(task.Deadline), task.Status, boolInt(task.Pinned))
	return err
}

func (w writer) UpsertUser(ctx context.Context, user domain.User) error {
	_, err := w.ex.ExecContext(ctx, `
		INSERT INTO users(id, email, display_name, notification_on) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			notification_on = excluded.notification_on
	`, user.ID, user.Email, user.DisplayName, boolInt(user.NotificationOn))
	return err
}

// scanner is satisfied by *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		task        domain.Task
		deadlineRaw string
		pinned      int
	)
	if err := s.Scan(&task.ID, &task.BoardID, &task.Name, &deadlineRaw, &task.Status, &pinned); err != nil {
		return domain.Task{}, err
	}
	deadline, err := parseTS(deadlineRaw)
	if err != nil {
		return domain.Task{}, fmt.Errorf("parse task %q deadline %q: %w", task.ID, deadlineRaw, err)
	}
	task.Deadline = deadline
	task.Pinned = pinned == 1
	return task, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS reads a stored RFC3339 timestamp. Anything else is an error, never the zero time.
func parseTS(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

// canonicalEmail lower-cases rows written by other tools so lookups match imported addresses.
func canonicalEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
