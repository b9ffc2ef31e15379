package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evanschultz/unitask/internal/app"
)

type planStub struct{}

func (planStub) Preview(context.Context) (app.Plan, error) {
	return app.Plan{RunID: "p"}, nil
}

func TestNewHandlerRoutes(t *testing.T) {
	handler, cfg, err := NewHandler(Config{APIEndpoint: "api/v2/"}, Dependencies{Planner: planStub{}})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v2" || cfg.MCPEndpoint != "/mcp" || cfg.HTTPBind != defaultBindAddress {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}

	cases := map[string]int{
		"/healthz":        http.StatusOK,
		"/readyz":         http.StatusOK,
		"/api/v2/digests": http.StatusOK,
		"/api/v1/digests": http.StatusNotFound,
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Fatalf("GET %s = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestNewHandlerRequiresPlanner(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected error without planner")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"":        "/api/v1",
		"/":       "/api/v1",
		"api":     "/api",
		" /x/y/ ": "/x/y",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in, "/api/v1"); got != want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, Dependencies{Planner: planStub{}})
	}()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestNewHandlerMountsMCP(t *testing.T) {
	handler, _, err := NewHandler(Config{MCPEndpoint: "tools"}, Dependencies{Planner: planStub{}})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"unitask-test","version":"1.0.0"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/tools", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /tools = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestNewHandlerRejectsEndpointCollision(t *testing.T) {
	if _, _, err := NewHandler(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}, Dependencies{Planner: planStub{}}); err == nil {
		t.Fatal("expected collision error")
	}
}
