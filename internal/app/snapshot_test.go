package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/unitask/internal/domain"
)

type memoryWriter struct {
	order []string
	set   ReadSet
}

func (m *memoryWriter) UpsertTeam(_ context.Context, team domain.Team) error {
	m.order = append(m.order, "team:"+team.ID)
	m.set.Teams = append(m.set.Teams, team)
	return nil
}

func (m *memoryWriter) UpsertBoard(_ context.Context, board domain.Board) error {
	m.order = append(m.order, "board:"+board.ID)
	m.set.Boards = append(m.set.Boards, board)
	return nil
}

func (m *memoryWriter) UpsertTask(_ context.Context, task domain.Task) error {
	m.order = append(m.order, "task:"+task.ID)
	m.set.Tasks = append(m.set.Tasks, task)
	return nil
}

func (m *memoryWriter) UpsertUser(_ context.Context, user domain.User) error {
	m.order = append(m.order, "user:"+user.ID)
	m.set.Users = append(m.set.Users, user)
	return nil
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		Version: SnapshotVersion,
		Teams:   []SnapshotTeam{{ID: "t1", Name: "Compilers", Members: []string{"a@x.com"}, Leader: "a@x.com"}},
		Boards:  []SnapshotBoard{{ID: "b1", TeamID: "t1", Name: "Parser", Code: "cs", Deadline: testNow.Add(time.Hour)}},
		Tasks:   []SnapshotTask{{BoardID: "b1", Name: "Lexer", Deadline: testNow.Add(time.Hour)}},
		Users:   []SnapshotUser{{ID: "u1", Email: "a@x.com", DisplayName: "Ada", NotificationOn: true}},
	}
}

func TestImportSnapshotWritesInDependencyOrder(t *testing.T) {
	w := &memoryWriter{}
	if err := ImportSnapshot(context.Background(), w, sampleSnapshot(), func() string { return "gen-1" }); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	want := []string{"team:t1", "user:u1", "board:b1", "task:gen-1"}
	if !equalIDs(w.order, want) {
		t.Fatalf("unexpected write order %v", w.order)
	}
	if w.set.Tasks[0].Status != domain.StatusToDo {
		t.Fatalf("expected default status, got %q", w.set.Tasks[0].Status)
	}
	if w.set.Boards[0].Code != "CS" {
		t.Fatalf("expected normalized code, got %q", w.set.Boards[0].Code)
	}
}

func TestSnapshotValidateRejectsBrokenReferences(t *testing.T) {
	cases := map[string]func(*Snapshot){
		"unknown team": func(s *Snapshot) { s.Boards[0].TeamID = "nope" },
		"unknown board": func(s *Snapshot) {
			s.Tasks[0].ID = "k1"
			s.Tasks[0].BoardID = "nope"
		},
		"duplicate email": func(s *Snapshot) {
			s.Users = append(s.Users, SnapshotUser{ID: "u2", Email: "A@x.com"})
		},
		"bad version": func(s *Snapshot) { s.Version = "other.v9" },
		"missing id":  func(s *Snapshot) { s.Tasks[0].ID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			snap := sampleSnapshot()
			mutate(&snap)
			if err := snap.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
				t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
			}
		})
	}
}

func TestExportSnapshotRoundTrip(t *testing.T) {
	w := &memoryWriter{}
	if err := ImportSnapshot(context.Background(), w, sampleSnapshot(), func() string { return "k1" }); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	snap, err := ExportSnapshot(context.Background(), &stubRepo{set: w.set}, testNow)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion || !snap.ExportedAt.Equal(testNow) {
		t.Fatalf("unexpected header %q %s", snap.Version, snap.ExportedAt)
	}
	if len(snap.Teams) != 1 || len(snap.Boards) != 1 || len(snap.Tasks) != 1 || len(snap.Users) != 1 {
		t.Fatalf("unexpected export sizes %#v", snap)
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("exported snapshot should validate, got %v", err)
	}
}

func TestExportSnapshotPropagatesReadErrors(t *testing.T) {
	repo := &stubRepo{failList: "boards", err: errors.New("disk gone")}
	_, err := ExportSnapshot(context.Background(), repo, testNow)
	if err == nil || !strings.Contains(err.Error(), "list boards") {
		t.Fatalf("expected list boards error, got %v", err)
	}
}

func TestExportSnapshotSkipsRowsImportWouldReject(t *testing.T) {
	set := ReadSet{
		Teams: []domain.Team{{ID: "t1", Name: "Compilers", Members: []string{"a@x.com"}, Leader: "a@x.com"}},
		Boards: []domain.Board{
			{ID: "b1", TeamID: "t1", Name: "Parser", Deadline: testNow.Add(time.Hour)},
			{ID: "b2", TeamID: "gone", Name: "Old", Deadline: testNow.Add(time.Hour)},
		},
		Tasks: []domain.Task{
			{ID: "k1", BoardID: "b1", Name: "Lexer", Deadline: testNow.Add(time.Hour), Status: domain.StatusToDo},
			{ID: "k2", BoardID: "b2", Name: "Orphan", Deadline: testNow.Add(time.Hour), Status: domain.StatusToDo},
			{ID: "k3", BoardID: "nope", Name: "Lost", Deadline: testNow.Add(time.Hour), Status: domain.StatusToDo},
		},
		Users: []domain.User{
			{ID: "u2", Email: "a@x.com", DisplayName: "Second"},
			{ID: "u1", Email: "a@x.com", DisplayName: "First"},
		},
	}
	snap, err := ExportSnapshot(context.Background(), &stubRepo{set: set}, testNow)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if len(snap.Boards) != 1 || snap.Boards[0].ID != "b1" {
		t.Fatalf("expected only b1 exported, got %#v", snap.Boards)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != "k1" {
		t.Fatalf("expected only k1 exported, got %#v", snap.Tasks)
	}
	if len(snap.Users) != 1 || snap.Users[0].ID != "u1" {
		t.Fatalf("expected first user by id kept, got %#v", snap.Users)
	}
	if err := ImportSnapshot(context.Background(), &memoryWriter{}, snap, nil); err != nil {
		t.Fatalf("re-import of export failed: %v", err)
	}
}

// txMemoryWriter stages writes and only publishes them when the transaction succeeds.
type txMemoryWriter struct {
	memoryWriter
	txs     int
	failOn  string
	staging *memoryWriter
}

func (m *txMemoryWriter) WithinTx(_ context.Context, fn func(Writer) error) error {
	m.txs++
	m.staging = &memoryWriter{}
	if err := fn(failingWriter{Writer: m.staging, failOn: m.failOn}); err != nil {
		return err
	}
	m.order = append(m.order, m.staging.order...)
	m.set = m.staging.set
	return nil
}

type failingWriter struct {
	Writer
	failOn string
}

func (f failingWriter) UpsertBoard(ctx context.Context, board domain.Board) error {
	if f.failOn == "board:"+board.ID {
		return errors.New("constraint failed")
	}
	return f.Writer.UpsertBoard(ctx, board)
}

func TestImportSnapshotUsesTransactionWhenAvailable(t *testing.T) {
	w := &txMemoryWriter{failOn: "board:b1"}
	err := ImportSnapshot(context.Background(), w, sampleSnapshot(), func() string { return "k1" })
	if err == nil || !strings.Contains(err.Error(), `upsert board "b1"`) {
		t.Fatalf("expected board upsert error, got %v", err)
	}
	if w.txs != 1 {
		t.Fatalf("expected one transaction, got %d", w.txs)
	}
	if len(w.order) != 0 || len(w.set.Teams) != 0 {
		t.Fatalf("expected nothing published after failure, got %v", w.order)
	}

	w.failOn = ""
	if err := ImportSnapshot(context.Background(), w, sampleSnapshot(), func() string { return "k1" }); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	if !equalIDs(w.order, []string{"team:t1", "user:u1", "board:b1", "task:k1"}) {
		t.Fatalf("unexpected write order %v", w.order)
	}
}
