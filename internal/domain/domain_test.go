package domain

import (
	"testing"
	"time"
)

func TestNewTeamNormalizesMembers(t *testing.T) {
	team, err := NewTeam(TeamInput{
		ID:      " t1 ",
		Name:    "  Compilers Group ",
		Members: []string{"B@x.com", "a@x.com", "b@x.com "},
		Leader:  "lead@x.com",
	})
	if err != nil {
		t.Fatalf("NewTeam() error = %v", err)
	}
	if team.ID != "t1" || team.Name != "Compilers Group" {
		t.Fatalf("unexpected team identity %#v", team)
	}
	want := []string{"b@x.com", "a@x.com", "lead@x.com"}
	if len(team.Members) != len(want) {
		t.Fatalf("unexpected members %#v", team.Members)
	}
	for i := range want {
		if team.Members[i] != want[i] {
			t.Fatalf("member[%d] = %q, want %q", i, team.Members[i], want[i])
		}
	}
	if !team.HasMember(" LEAD@x.com") {
		t.Fatal("expected leader to be a member")
	}
}

func TestNewTeamValidation(t *testing.T) {
	if _, err := NewTeam(TeamInput{Name: "x", Leader: "a@x.com"}); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewTeam(TeamInput{ID: "t1", Name: "  ", Leader: "a@x.com"}); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := NewTeam(TeamInput{ID: "t1", Name: "x", Leader: "nope"}); err != ErrInvalidLeader {
		t.Fatalf("expected ErrInvalidLeader, got %v", err)
	}
	if _, err := NewTeam(TeamInput{ID: "t1", Name: "x", Leader: "a@x.com", Members: []string{"bad address"}}); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestNewBoardValidation(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := NewBoard(BoardInput{ID: "b1", Name: "x", Deadline: deadline}); err != ErrInvalidTeamID {
		t.Fatalf("expected ErrInvalidTeamID, got %v", err)
	}
	if _, err := NewBoard(BoardInput{ID: "b1", TeamID: "t1", Name: "x"}); err != ErrInvalidDeadline {
		t.Fatalf("expected ErrInvalidDeadline, got %v", err)
	}
	board, err := NewBoard(BoardInput{ID: "b1", TeamID: "t1", Name: " Parser ", Code: " cs101 ", Deadline: deadline.Add(500 * time.Millisecond)})
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if board.Code != "CS101" || board.Name != "Parser" {
		t.Fatalf("unexpected board %#v", board)
	}
	if !board.Deadline.Equal(deadline) {
		t.Fatalf("expected deadline truncated to seconds, got %s", board.Deadline)
	}
	if !board.IsOverdue(deadline) {
		t.Fatal("expected board overdue at its exact deadline")
	}
	if board.IsOverdue(deadline.Add(-time.Second)) {
		t.Fatal("expected board not overdue before its deadline")
	}
}

func TestNewTaskDefaultsStatus(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task, err := NewTask(TaskInput{ID: "k1", BoardID: "b1", Name: "Write lexer", Deadline: deadline})
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Status != StatusToDo {
		t.Fatalf("unexpected default status %q", task.Status)
	}
	if task.IsDone() {
		t.Fatal("expected fresh task to be open")
	}
	if _, err := NewTask(TaskInput{ID: "k1", Name: "x", Deadline: deadline}); err != ErrInvalidBoardID {
		t.Fatalf("expected ErrInvalidBoardID, got %v", err)
	}
}

func TestDoneStatusIsExact(t *testing.T) {
	if !IsDoneStatus("Done") {
		t.Fatal("expected Done to complete a task")
	}
	for _, status := range []string{"done", "DONE", "Done ", "To Do", ""} {
		if IsDoneStatus(status) {
			t.Fatalf("expected %q not to be the completion status", status)
		}
	}
}

func TestNewUser(t *testing.T) {
	user, err := NewUser(UserInput{ID: "u1", Email: " C@X.com ", NotificationOn: true})
	if err != nil {
		t.Fatalf("NewUser() error = %v", err)
	}
	if user.Email != "c@x.com" {
		t.Fatalf("unexpected email %q", user.Email)
	}
	if user.DisplayName != "c@x.com" {
		t.Fatalf("expected display name fallback to email, got %q", user.DisplayName)
	}
	if _, err := NewUser(UserInput{ID: "u1", Email: "Jane <jane@x.com>"}); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail for display-form address, got %v", err)
	}
}
