package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMinConns        = 1
	defaultMaxConns        = 8
	defaultMaxConnLifetime = 30 * time.Minute
	defaultMaxConnIdleTime = 5 * time.Minute
	defaultHealthCheck     = 30 * time.Second
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS teams (
  id text PRIMARY KEY,
  name text NOT NULL,
  leader_email text NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS team_members (
  team_id text NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
  email text NOT NULL,
  position integer NOT NULL,
  PRIMARY KEY (team_id, email)
)`,
	`CREATE TABLE IF NOT EXISTS boards (
  id text PRIMARY KEY,
  team_id text NOT NULL,
  name text NOT NULL,
  code text NOT NULL DEFAULT '',
  deadline timestamptz NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
  id text PRIMARY KEY,
  board_id text NOT NULL,
  name text NOT NULL,
  deadline timestamptz NOT NULL,
  status text NOT NULL DEFAULT 'To Do',
  pinned boolean NOT NULL DEFAULT false
)`,
	`CREATE TABLE IF NOT EXISTS users (
  id text PRIMARY KEY,
  email text NOT NULL UNIQUE,
  display_name text NOT NULL DEFAULT '',
  notification_on boolean NOT NULL DEFAULT true
)`,
}

const upsertTeamSQL = `
INSERT INTO teams (id, name, leader_email)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    leader_email = EXCLUDED.leader_email
`

const upsertBoardSQL = `
INSERT INTO boards (id, team_id, name, code, deadline)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET team_id = EXCLUDED.team_id,
    name = EXCLUDED.name,
    code = EXCLUDED.code,
    deadline = EXCLUDED.deadline
`

const upsertTaskSQL = `
INSERT INTO tasks (id, board_id, name, deadline, status, pinned)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET board_id = EXCLUDED.board_id,
    name = EXCLUDED.name,
    deadline = EXCLUDED.deadline,
    status = EXCLUDED.status,
    pinned = EXCLUDED.pinned
`

const upsertUserSQL = `
INSERT INTO users (id, email, display_name, notification_on)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET email = EXCLUDED.email,
    display_name = EXCLUDED.display_name,
    notification_on = EXCLUDED.notification_on
`

var (
	_ app.Repository = (*Repository)(nil)
	_ app.TxWriter   = (*Repository)(nil)
	_ app.Writer     = writer{}
)

type Repository struct {
	Pool *pgxpool.Pool
}

// PoolOptions bounds the connection pool. Zero values fall back to defaults.
type PoolOptions struct {
	MinConns int
	MaxConns int
}

// PoolConfig parses databaseURL and applies pool bounds.
func PoolConfig(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("postgres url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	minConns, maxConns := opts.MinConns, opts.MaxConns
	if minConns < 0 {
		minConns = defaultMinConns
	}
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	cfg.MinConns = int32(minConns)
	cfg.MaxConns = int32(maxConns)
	cfg.MaxConnLifetime = defaultMaxConnLifetime
	cfg.MaxConnIdleTime = defaultMaxConnIdleTime
	cfg.HealthCheckPeriod = defaultHealthCheck
	return cfg, nil
}

// Open connects a pool and ensures the schema exists.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*Repository, error) {
	cfg, err := PoolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := &Repository{Pool: pool}
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	r.Pool.Close()
	return nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

func (r *Repository) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.Pool.Query(ctx, `
SELECT t.id, t.name, t.leader_email, COALESCE(m.email, '')
FROM teams t
LEFT JOIN team_members m ON m.team_id = t.id
ORDER BY t.id ASC, m.position ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out   []domain.Team
		index = map[string]int{}
	)
	for rows.Next() {
		var id, name, leader, email string
		if err := rows.Scan(&id, &name, &leader, &email); err != nil {
			return nil, err
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, domain.Team{ID: id, Name: name, Leader: canonicalEmail(leader)})
		}
		email = canonicalEmail(email)
		if email != "" && !slices.Contains(out[i].Members, email) {
			out[i].Members = append(out[i].Members, email)
		}
	}
	return out, rows.Err()
}

func (r *Repository) ListBoards(ctx context.Context) ([]domain.Board, error) {
	rows, err := r.Pool.Query(ctx, `SELECT id, team_id, name, code, deadline FROM boards ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Board
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.TeamID, &b.Name, &b.Code, &b.Deadline); err != nil {
			return nil, err
		}
		b.Deadline = b.Deadline.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.Pool.Query(ctx, `SELECT id, board_id, name, deadline, status, pinned FROM tasks ORDER BY board_id ASC, deadline ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.BoardID, &t.Name, &t.Deadline, &t.Status, &t.Pinned); err != nil {
			return nil, err
		}
		t.Deadline = t.Deadline.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.Pool.Query(ctx, `SELECT id, email, display_name, notification_on FROM users ORDER BY email ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.NotificationOn); err != nil {
			return nil, err
		}
		u.Email = canonicalEmail(u.Email)
		out = append(out, u)
	}
	return out, rows.Err()
}

// WithinTx runs fn against a writer bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (r *Repository) WithinTx(ctx context.Context, fn func(app.Writer) error) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(writer{ex: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertTeam writes the team and replaces its member list in one transaction.
func (r *Repository) UpsertTeam(ctx context.Context, team domain.Team) error {
	return r.WithinTx(ctx, func(w app.Writer) error {
		return w.UpsertTeam(ctx, team)
	})
}

func (r *Repository) UpsertBoard(ctx context.Context, board domain.Board) error {
	return writer{ex: r.Pool}.UpsertBoard(ctx, board)
}

func (r *Repository) UpsertTask(ctx context.Context, task domain.Task) error {
	return writer{ex: r.Pool}.UpsertTask(ctx, task)
}

func (r *Repository) UpsertUser(ctx context.Context, user domain.User) error {
	return writer{ex: r.Pool}.UpsertUser(ctx, user)
}

// execer is satisfied by *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type writer struct {
	ex execer
}

func (w writer) UpsertTeam(ctx context.Context, team domain.Team) error {
	if _, err := w.ex.Exec(ctx, upsertTeamSQL, team.ID, team.Name, team.Leader); err != nil {
		return err
	}
	if _, err := w.ex.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1`, team.ID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i, email := range team.Members {
		batch.Queue(`INSERT INTO team_members (team_id, email, position) VALUES ($1, $2, $3)`, team.ID, email, i)
	}
	if batch.Len() == 0 {
		return nil
	}
	return w.ex.SendBatch(ctx, batch).Close()
}

func (w writer) UpsertBoard(ctx context.Context, board domain.Board) error {
	_, err := w.ex.Exec(ctx, upsertBoardSQL, board.ID, board.TeamID, board.Name, board.Code, board.Deadline)
	return err
}

func (w writer) UpsertTask(ctx context.Context, task domain.Task) error {
	_, err := w.ex.Exec(ctx, upsertTaskSQL, task.ID, task.BoardID, task.Name, task.Deadline, task.Status, task.Pinned)
	return err
}

func (w writer) UpsertUser(ctx context.Context, user domain.User) error {
	_, err := w.ex.Exec(ctx, upsertUserSQL, user.ID, user.Email, user.DisplayName, user.NotificationOn)
	return err
}

func canonicalEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
