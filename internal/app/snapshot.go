package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/unitask/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "unitask.snapshot.v1"

// Snapshot represents a portable copy of teams, boards, tasks and users.
type Snapshot struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Teams      []SnapshotTeam  `json:"teams"`
	Boards     []SnapshotBoard `json:"boards"`
	Tasks      []SnapshotTask  `json:"tasks"`
	Users      []SnapshotUser  `json:"users"`
}

// SnapshotTeam represents snapshot team data used by this package.
type SnapshotTeam struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Leader  string   `json:"leader"`
}

// SnapshotBoard represents snapshot board data used by this package.
type SnapshotBoard struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"team_id"`
	Name     string    `json:"name"`
	Code     string    `json:"code,omitempty"`
	Deadline time.Time `json:"deadline"`
}

// SnapshotTask represents snapshot task data used by this package.
type SnapshotTask struct {
	ID       string    `json:"id"`
	BoardID  string    `json:"board_id"`
	Name     string    `json:"name"`
	Deadline time.Time `json:"deadline"`
	Status   string    `json:"status"`
	Pinned   bool      `json:"pinned,omitempty"`
}

// SnapshotUser represents snapshot user data used by this package.
type SnapshotUser struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`
	NotificationOn bool   `json:"notification_on"`
}

// ExportSnapshot reads every collection into one snapshot that ImportSnapshot accepts.
// Boards whose team no longer exists, tasks under those or unknown boards, and
// later users sharing an email are left out.
func ExportSnapshot(ctx context.Context, repo Repository, now time.Time) (Snapshot, error) {
	teams, err := repo.ListTeams(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list teams: %w", err)
	}
	boards, err := repo.ListBoards(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list boards: %w", err)
	}
	tasks, err := repo.ListTasks(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list tasks: %w", err)
	}
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list users: %w", err)
	}
	boards, _ = KnownTeamBoards(boards, teams)
	exportedBoards := make(map[string]struct{}, len(boards))
	for _, board := range boards {
		exportedBoards[board.ID] = struct{}{}
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: now.UTC(),
		Teams:      make([]SnapshotTeam, 0, len(teams)),
		Boards:     make([]SnapshotBoard, 0, len(boards)),
		Tasks:      make([]SnapshotTask, 0, len(tasks)),
		Users:      make([]SnapshotUser, 0, len(users)),
	}
	for _, team := range teams {
		snap.Teams = append(snap.Teams, SnapshotTeam{
			ID:      team.ID,
			Name:    team.Name,
			Members: append([]string(nil), team.Members...),
			Leader:  team.Leader,
		})
	}
	for _, board := range boards {
		snap.Boards = append(snap.Boards, SnapshotBoard{
			ID:       board.ID,
			TeamID:   board.TeamID,
			Name:     board.Name,
			Code:     board.Code,
			Deadline: board.Deadline,
		})
	}
	for _, task := range tasks {
		if _, ok := exportedBoards[task.BoardID]; !ok {
			continue
		}
		snap.Tasks = append(snap.Tasks, SnapshotTask{
			ID:       task.ID,
			BoardID:  task.BoardID,
			Name:     task.Name,
			Deadline: task.Deadline,
			Status:   task.Status,
			Pinned:   task.Pinned,
		})
	}
	for _, user := range users {
		snap.Users = append(snap.Users, SnapshotUser{
			ID:             user.ID,
			Email:          user.Email,
			DisplayName:    user.DisplayName,
			NotificationOn: user.NotificationOn,
		})
	}
	snap.sort()
	snap.dropDuplicateEmails()
	return snap, nil
}

// ImportSnapshot validates snap and upserts every entity in dependency order.
// Entities without an id receive one from idGen. When w is a TxWriter the whole
// import commits atomically; other writers may be left partially written on error.
func ImportSnapshot(ctx context.Context, w Writer, snap Snapshot, idGen IDGenerator) error {
	if idGen != nil {
		snap.assignMissingIDs(idGen)
	}
	entities, err := snap.toDomain()
	if err != nil {
		return err
	}
	if tw, ok := w.(TxWriter); ok {
		return tw.WithinTx(ctx, func(tx Writer) error {
			return writeEntities(ctx, tx, entities)
		})
	}
	return writeEntities(ctx, w, entities)
}

func writeEntities(ctx context.Context, w Writer, entities ReadSet) error {
	for _, team := range entities.Teams {
		if err := w.UpsertTeam(ctx, team); err != nil {
			return fmt.Errorf("upsert team %q: %w", team.ID, err)
		}
	}
	for _, user := range entities.Users {
		if err := w.UpsertUser(ctx, user); err != nil {
			return fmt.Errorf("upsert user %q: %w", user.ID, err)
		}
	}
	for _, board := range entities.Boards {
		if err := w.UpsertBoard(ctx, board); err != nil {
			return fmt.Errorf("upsert board %q: %w", board.ID, err)
		}
	}
	for _, task := range entities.Tasks {
		if err := w.UpsertTask(ctx, task); err != nil {
			return fmt.Errorf("upsert task %q: %w", task.ID, err)
		}
	}
	return nil
}

// Validate checks versions, ids and cross references without writing anything.
func (s Snapshot) Validate() error {
	_, err := s.toDomain()
	return err
}

// toDomain converts and validates every snapshot row.
func (s Snapshot) toDomain() (ReadSet, error) {
	if s.Version != "" && s.Version != SnapshotVersion {
		return ReadSet{}, fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}

	out := ReadSet{
		Teams:  make([]domain.Team, 0, len(s.Teams)),
		Boards: make([]domain.Board, 0, len(s.Boards)),
		Tasks:  make([]domain.Task, 0, len(s.Tasks)),
		Users:  make([]domain.User, 0, len(s.Users)),
	}

	teamIDs := map[string]struct{}{}
	for i, row := range s.Teams {
		team, err := domain.NewTeam(domain.TeamInput{ID: row.ID, Name: row.Name, Members: row.Members, Leader: row.Leader})
		if err != nil {
			return ReadSet{}, fmt.Errorf("%w: teams[%d]: %w", ErrInvalidSnapshot, i, err)
		}
		if _, dup := teamIDs[team.ID]; dup {
			return ReadSet{}, fmt.Errorf("%w: duplicate team id %q", ErrInvalidSnapshot, team.ID)
		}
		teamIDs[team.ID] = struct{}{}
		out.Teams = append(out.Teams, team)
	}

	userIDs := map[string]struct{}{}
	emails := map[string]struct{}{}
	for i, row := range s.Users {
		user, err := domain.NewUser(domain.UserInput{ID: row.ID, Email: row.Email, DisplayName: row.DisplayName, NotificationOn: row.NotificationOn})
		if err != nil {
			return ReadSet{}, fmt.Errorf("%w: users[%d]: %w", ErrInvalidSnapshot, i, err)
		}
		if _, dup := userIDs[user.ID]; dup {
			return ReadSet{}, fmt.Errorf("%w: duplicate user id %q", ErrInvalidSnapshot, user.ID)
		}
		if _, dup := emails[user.Email]; dup {
			return ReadSet{}, fmt.Errorf("%w: duplicate user email %q", ErrInvalidSnapshot, user.Email)
		}
		userIDs[user.ID] = struct{}{}
		emails[user.Email] = struct{}{}
		out.Users = append(out.Users, user)
	}

	boardIDs := map[string]struct{}{}
	for i, row := range s.Boards {
		board, err := domain.NewBoard(domain.BoardInput{ID: row.ID, TeamID: row.TeamID, Name: row.Name, Code: row.Code, Deadline: row.Deadline})
		if err != nil {
			return ReadSet{}, fmt.Errorf("%w: boards[%d]: %w", ErrInvalidSnapshot, i, err)
		}
		if _, ok := teamIDs[board.TeamID]; !ok {
			return ReadSet{}, fmt.Errorf("%w: boards[%d] references unknown team_id %q", ErrInvalidSnapshot, i, board.TeamID)
		}
		if _, dup := boardIDs[board.ID]; dup {
			return ReadSet{}, fmt.Errorf("%w: duplicate board id %q", ErrInvalidSnapshot, board.ID)
		}
		boardIDs[board.ID] = struct{}{}
		out.Boards = append(out.Boards, board)
	}

	taskIDs := map[string]struct{}{}
	for i, row := range s.Tasks {
		task, err := domain.NewTask(domain.TaskInput{ID: row.ID, BoardID: row.BoardID, Name: row.Name, Deadline: row.Deadline, Status: row.Status, Pinned: row.Pinned})
		if err != nil {
			return ReadSet{}, fmt.Errorf("%w: tasks[%d]: %w", ErrInvalidSnapshot, i, err)
		}
		if _, ok := boardIDs[task.BoardID]; !ok {
			return ReadSet{}, fmt.Errorf("%w: tasks[%d] references unknown board_id %q", ErrInvalidSnapshot, i, task.BoardID)
		}
		if _, dup := taskIDs[task.ID]; dup {
			return ReadSet{}, fmt.Errorf("%w: duplicate task id %q", ErrInvalidSnapshot, task.ID)
		}
		taskIDs[task.ID] = struct{}{}
		out.Tasks = append(out.Tasks, task)
	}
	return out, nil
}

// assignMissingIDs fills blank ids. Blank team and board ids cannot be referenced, so
// only users and tasks are safe to fill.
func (s *Snapshot) assignMissingIDs(idGen IDGenerator) {
	for i := range s.Users {
		if strings.TrimSpace(s.Users[i].ID) == "" {
			s.Users[i].ID = idGen()
		}
	}
	for i := range s.Tasks {
		if strings.TrimSpace(s.Tasks[i].ID) == "" {
			s.Tasks[i].ID = idGen()
		}
	}
}

// dropDuplicateEmails keeps the first user per email. Rows must already be sorted.
func (s *Snapshot) dropDuplicateEmails() {
	seen := make(map[string]struct{}, len(s.Users))
	kept := s.Users[:0]
	for _, user := range s.Users {
		if _, dup := seen[user.Email]; dup {
			continue
		}
		seen[user.Email] = struct{}{}
		kept = append(kept, user)
	}
	s.Users = kept
}

// sort orders rows by id so exports are stable.
func (s *Snapshot) sort() {
	sort.SliceStable(s.Teams, func(i, j int) bool { return s.Teams[i].ID < s.Teams[j].ID })
	sort.SliceStable(s.Boards, func(i, j int) bool { return s.Boards[i].ID < s.Boards[j].ID })
	sort.SliceStable(s.Tasks, func(i, j int) bool { return s.Tasks[i].ID < s.Tasks[j].ID })
	sort.SliceStable(s.Users, func(i, j int) bool { return s.Users[i].ID < s.Users[j].ID })
}
