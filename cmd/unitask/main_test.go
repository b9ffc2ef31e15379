package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/config"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("UNITASK_DEV_MODE", "false")
	_ = os.Unsetenv("UNITASK_CONFIG")
	_ = os.Unsetenv("UNITASK_DB_PATH")
	os.Exit(m.Run())
}

// testWorkspace returns isolated config and database flags for one test.
func testWorkspace(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging]\nlevel = \"error\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return []string{"--config", cfgPath, "--db", filepath.Join(dir, "unitask.db")}
}

// writeSnapshot stores one snapshot file with a board due soon and returns its path.
func writeSnapshot(t *testing.T, now time.Time) string {
	t.Helper()
	snap := app.Snapshot{
		Version: app.SnapshotVersion,
		Teams: []app.SnapshotTeam{{
			ID:      "t1",
			Name:    "Compilers",
			Members: []string{"ada@uni.example", "bob@uni.example"},
			Leader:  "ada@uni.example",
		}},
		Boards: []app.SnapshotBoard{{ID: "b1", TeamID: "t1", Name: "Parser", Code: "cs101", Deadline: now.Add(72 * time.Hour)}},
		Tasks: []app.SnapshotTask{
			{ID: "k1", BoardID: "b1", Name: "Lexer", Deadline: now.Add(2 * time.Hour)},
			{ID: "k2", BoardID: "b1", Name: "Grammar", Deadline: now.Add(60 * time.Hour)},
		},
		Users: []app.SnapshotUser{
			{ID: "u1", Email: "ada@uni.example", DisplayName: "Ada", NotificationOn: true},
			{ID: "u2", Email: "bob@uni.example", DisplayName: "Bob", NotificationOn: false},
		},
	}
	encoded, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// runCLI runs one command and returns stdout.
func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run(%v) error = %v\nstderr: %s", args, err, stderr.String())
	}
	return stdout.String()
}

func TestRunPathsCommand(t *testing.T) {
	out := runCLI(t, "--app", "unitask-test", "paths")
	for _, want := range []string{"app: unitask-test", "dev_mode: false", "config: ", "db: ", "snapshot: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"frobnicate"}, &stdout, &stderr); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestImportRequiresInFlag(t *testing.T) {
	args := append(testWorkspace(t), "import")
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "--in is required") {
		t.Fatalf("expected --in error, got %v", err)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	ws := testWorkspace(t)
	snapPath := writeSnapshot(t, time.Now().UTC())
	runCLI(t, append(ws, "import", "--in", snapPath)...)

	out := runCLI(t, append(ws, "export")...)
	var snap app.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, out)
	}
	if snap.Version != app.SnapshotVersion {
		t.Fatalf("unexpected version %q", snap.Version)
	}
	if len(snap.Teams) != 1 || len(snap.Boards) != 1 || len(snap.Tasks) != 2 || len(snap.Users) != 2 {
		t.Fatalf("unexpected snapshot sizes %#v", snap)
	}
	if snap.Boards[0].Code != "CS101" {
		t.Fatalf("expected normalized board code, got %q", snap.Boards[0].Code)
	}

	outPath := filepath.Join(t.TempDir(), "nested", "export.json")
	runCLI(t, append(ws, "export", "--out", outPath)...)
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected export file: %v", err)
	}
}

func TestPreviewListsOnlyOptedInRecipients(t *testing.T) {
	ws := testWorkspace(t)
	runCLI(t, append(ws, "import", "--in", writeSnapshot(t, time.Now().UTC()))...)

	out := runCLI(t, append(ws, "preview")...)
	if !strings.Contains(out, "ada@uni.example") {
		t.Fatalf("expected ada in preview, got %q", out)
	}
	if strings.Contains(out, "bob@uni.example") {
		t.Fatalf("expected bob to be opted out, got %q", out)
	}
	if !strings.Contains(out, "1 reminders, 1 opted out") {
		t.Fatalf("unexpected preview summary %q", out)
	}

	filtered := runCLI(t, append(ws, "preview", "--email", "nobody@uni.example")...)
	if strings.Contains(filtered, "ada@uni.example") {
		t.Fatalf("expected filter to drop ada, got %q", filtered)
	}
}

func TestRunSendsThroughConsoleTransport(t *testing.T) {
	ws := testWorkspace(t)
	runCLI(t, append(ws, "import", "--in", writeSnapshot(t, time.Now().UTC()))...)

	out := runCLI(t, append(ws, "run")...)
	for _, want := range []string{"To: ada@uni.example", "Lexer", "1 sent, 0 failed, 1 opted out"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}
	if strings.Contains(out, "Grammar") {
		t.Fatalf("expected non-urgent task to be omitted, got %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected plain text without --styled, got %q", out)
	}
}

func TestRunStyledRendersMarkdown(t *testing.T) {
	ws := testWorkspace(t)
	runCLI(t, append(ws, "import", "--in", writeSnapshot(t, time.Now().UTC()))...)

	out := runCLI(t, append(ws, "run", "--styled")...)
	if !strings.Contains(out, "\x1b[") {
		t.Fatalf("expected ANSI styling with --styled, got %q", out)
	}
	if !strings.Contains(out, "1 sent, 0 failed") {
		t.Fatalf("unexpected run summary %q", out)
	}
}

func TestServerConfigCarriesRunTimeout(t *testing.T) {
	s := &session{
		cfg:    config.Default("/tmp/unitask.db"),
		notify: config.NotifySettings{UrgencyWindow: time.Hour, RunTimeout: 2 * time.Minute},
	}
	got := serverConfig(s, "unitask-test")
	if got.RunTimeout != 2*time.Minute || got.UrgencyWindow != time.Hour {
		t.Fatalf("unexpected timing config %#v", got)
	}
	if got.MCPEndpoint != "/mcp" || got.ServerName != "unitask-test" {
		t.Fatalf("unexpected endpoint config %#v", got)
	}
}

func TestFilterReminders(t *testing.T) {
	reminders := []app.Reminder{{Email: "a@x.com"}, {Email: "b@x.com"}}
	if got := filterReminders(reminders, ""); len(got) != 2 {
		t.Fatalf("expected all reminders, got %d", len(got))
	}
	got := filterReminders(reminders, " B@X.com ")
	if len(got) != 1 || got[0].Email != "b@x.com" {
		t.Fatalf("unexpected filter result %#v", got)
	}
}

func TestNewRuntimeLoggerDevFile(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	cfg := config.LoggingConfig{Level: "debug", DevFile: config.DevFileConfig{Enabled: true, Dir: dir}}

	var stderr bytes.Buffer
	logger, err := newRuntimeLogger(&stderr, "unitask", true, cfg, now)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("reminder sent", "email", "ada@uni.example")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := filepath.Join(dir, "unitask-20260302.log")
	if logger.DevLogPath() != want {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), want)
	}
	content, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "email=ada@uni.example") {
		t.Fatalf("expected logfmt entry, got %q", content)
	}
	if !strings.Contains(stderr.String(), "reminder sent") {
		t.Fatalf("expected console entry, got %q", stderr.String())
	}
}

func TestNewRuntimeLoggerRejectsBadLevel(t *testing.T) {
	if _, err := newRuntimeLogger(nil, "unitask", false, config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatal("expected level parse error")
	}
}

func TestNewRuntimeLoggerSkipsFileOutsideDevMode(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", DevFile: config.DevFileConfig{Enabled: true, Dir: t.TempDir()}}
	logger, err := newRuntimeLogger(nil, "unitask", false, cfg, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if logger.DevLogPath() != "" {
		t.Fatalf("expected no dev log, got %q", logger.DevLogPath())
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"":             "unitask",
		"  ":           "unitask",
		"uni task":     "uni-task",
		"a/b:c":        "a-b-c",
		"/unitask-dev": "unitask-dev",
	}
	for in, want := range cases {
		if got := sanitizeLogFileStem(in); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWorkspaceRootFromFindsMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != root {
		t.Fatalf("workspaceRootFrom() = %q, want %q", got, root)
	}
}

func TestInitWritesConfigOnce(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "conf", "config.toml")
	args := []string{"--config", cfgPath, "--db", filepath.Join(dir, "unitask.db"), "init"}

	if out := runCLI(t, args...); !strings.Contains(out, "wrote "+cfgPath) {
		t.Fatalf("unexpected init output %q", out)
	}
	cfg, err := config.Load(cfgPath, config.Default("/unused.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != filepath.Join(dir, "unitask.db") {
		t.Fatalf("expected db path to be persisted, got %q", cfg.Database.Path)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), args, &stdout, &stderr); err == nil {
		t.Fatal("expected second init to refuse overwrite")
	}
	runCLI(t, append(args, "--force")...)
}
