package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evanschultz/unitask/internal/domain"
)

// IDGenerator returns unique identifiers for runs and imported entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// NotifierConfig holds configuration for reminder runs.
type NotifierConfig struct {
	Policy      Policy
	Concurrency int
}

// Notifier reads one snapshot per run, aggregates it and dispatches reminders.
type Notifier struct {
	repo   Repository
	mailer Mailer
	idGen  IDGenerator
	clock  Clock
	logger Logger
	cfg    NotifierConfig

	// active prevents overlapping runs from the scheduler and manual triggers.
	active sync.Mutex
}

// NewNotifier constructs a reminder notifier.
func NewNotifier(repo Repository, mailer Mailer, idGen IDGenerator, clock Clock, logger Logger, cfg NotifierConfig) *Notifier {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = nopLogger{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultDispatchConcurrency
	}
	return &Notifier{
		repo:   repo,
		mailer: mailer,
		idGen:  idGen,
		clock:  clock,
		logger: logger,
		cfg:    cfg,
	}
}

// ReadSet is one immutable read of all four collections.
type ReadSet struct {
	Teams  []domain.Team
	Boards []domain.Board
	Tasks  []domain.Task
	Users  []domain.User
}

// Plan is the fully computed outcome of one run before any mail is sent.
type Plan struct {
	RunID        string
	Now          time.Time
	TasksByBoard TasksByBoard
	BoardsByTeam BoardsByTeam
	Digests      DigestByUser
	Reminders    []Reminder
	OptedOut     int
	StaleBoards  int
}

// RunReport summarizes one completed run.
type RunReport struct {
	RunID    string
	Now      time.Time
	Boards   int
	Digests  int
	Dispatch DispatchReport
	Duration time.Duration
}

// Run executes one reminder pass: read, aggregate, then send.
func (n *Notifier) Run(ctx context.Context) (RunReport, error) {
	if n.mailer == nil {
		return RunReport{}, ErrMailerRequired
	}
	if !n.active.TryLock() {
		return RunReport{}, ErrRunAlreadyActive
	}
	defer n.active.Unlock()

	started := n.clock()
	plan, err := n.Preview(ctx)
	if err != nil {
		return RunReport{}, err
	}

	n.logger.Info("reminder dispatch start", "run_id", plan.RunID, "recipients", len(plan.Reminders))
	dispatch := SendReminders(ctx, plan.Reminders, n.mailer, DispatchOptions{
		Concurrency: n.cfg.Concurrency,
		Now:         plan.Now,
		Logger:      n.logger,
	})
	dispatch.OptedOut = plan.OptedOut

	report := RunReport{
		RunID:    plan.RunID,
		Now:      plan.Now,
		Boards:   countBoards(plan.BoardsByTeam),
		Digests:  len(plan.Digests),
		Dispatch: dispatch,
		Duration: n.clock().Sub(started),
	}
	n.logger.Info(
		"reminder run complete",
		"run_id", report.RunID,
		"sent", dispatch.Sent,
		"failed", dispatch.Failed,
		"opted_out", dispatch.OptedOut,
		"duration", report.Duration,
	)
	return report, nil
}

// Preview computes the plan for one run without sending anything.
func (n *Notifier) Preview(ctx context.Context) (Plan, error) {
	runID := n.idGen()
	now := n.clock().UTC()
	n.logger.Debug("reminder run start", "run_id", runID, "now", now)

	set, err := n.read(ctx)
	if err != nil {
		n.logger.Error("reminder snapshot read failed", "run_id", runID, "err", err)
		return Plan{}, err
	}
	plan := BuildPlan(set, now, n.cfg.Policy)
	plan.RunID = runID

	n.logger.Debug(
		"reminder plan built",
		"run_id", runID,
		"teams", len(set.Teams),
		"boards", len(set.Boards),
		"tasks", len(set.Tasks),
		"users", len(set.Users),
		"stale_boards", plan.StaleBoards,
		"relevant_boards", countBoards(plan.BoardsByTeam),
		"digests", len(plan.Digests),
	)
	return plan, nil
}

// BuildPlan runs every aggregation stage over one read set.
func BuildPlan(set ReadSet, now time.Time, policy Policy) Plan {
	boards, stale := KnownTeamBoards(set.Boards, set.Teams)
	tasksByBoard := GroupTasksByBoard(set.Tasks)
	boardsByTeam := GroupBoardsByTeam(boards, tasksByBoard, now, policy)
	digests := BuildUserDigests(set.Teams, boardsByTeam)
	reminders, optedOut := SelectRecipients(digests, set.Users, boardsByTeam, now)
	return Plan{
		Now:          now,
		TasksByBoard: tasksByBoard,
		BoardsByTeam: boardsByTeam,
		Digests:      digests,
		Reminders:    reminders,
		OptedOut:     optedOut,
		StaleBoards:  stale,
	}
}

// read loads all four collections. Any failure aborts the run.
func (n *Notifier) read(ctx context.Context) (ReadSet, error) {
	if n.repo == nil {
		return ReadSet{}, fmt.Errorf("%w: repository is not configured", ErrSnapshotRead)
	}
	teams, err := n.repo.ListTeams(ctx)
	if err != nil {
		return ReadSet{}, fmt.Errorf("%w: list teams: %w", ErrSnapshotRead, err)
	}
	boards, err := n.repo.ListBoards(ctx)
	if err != nil {
		return ReadSet{}, fmt.Errorf("%w: list boards: %w", ErrSnapshotRead, err)
	}
	tasks, err := n.repo.ListTasks(ctx)
	if err != nil {
		return ReadSet{}, fmt.Errorf("%w: list tasks: %w", ErrSnapshotRead, err)
	}
	users, err := n.repo.ListUsers(ctx)
	if err != nil {
		return ReadSet{}, fmt.Errorf("%w: list users: %w", ErrSnapshotRead, err)
	}
	return ReadSet{Teams: teams, Boards: boards, Tasks: tasks, Users: users}, nil
}

// countBoards counts boards across all teams.
func countBoards(boardsByTeam BoardsByTeam) int {
	total := 0
	for _, boards := range boardsByTeam {
		total += len(boards)
	}
	return total
}
