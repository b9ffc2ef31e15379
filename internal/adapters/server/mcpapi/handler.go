// Package mcpapi provides a stateless MCP streamable-HTTP adapter over reminder runs.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evanschultz/unitask/internal/adapters/server/common"
	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
	UrgencyWindow time.Duration
	RunTimeout    time.Duration
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter. The run tool is only registered when runner is set.
func NewHandler(cfg Config, planner common.Planner, runner common.Runner) (*Handler, error) {
	if planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerDigestTools(mcpSrv, planner, cfg.UrgencyWindow)
	if runner != nil {
		registerRunTool(mcpSrv, runner, cfg.RunTimeout)
	}

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "unitask"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = "/" + strings.Trim(strings.TrimSpace(cfg.EndpointPath), "/")
	if cfg.EndpointPath == "/" {
		cfg.EndpointPath = "/mcp"
	}
	return cfg
}

// registerDigestTools registers the read-only preview tools.
func registerDigestTools(srv *mcpserver.MCPServer, planner common.Planner, window time.Duration) {
	srv.AddTool(
		mcp.NewTool(
			"unitask.preview_digests",
			mcp.WithDescription("List every reminder the next run would send, without sending."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			plan, err := planner.Preview(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(common.NewDigestsView(plan, window))
			if err != nil {
				return nil, fmt.Errorf("encode preview_digests result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"unitask.get_digest",
			mcp.WithDescription("Return the pending reminder for one recipient."),
			mcp.WithString("email", mcp.Required(), mcp.Description("Recipient email")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			raw, err := req.RequireString("email")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			email, err := domain.NormalizeEmail(raw)
			if err != nil {
				return mcp.NewToolResultError("invalid_request: email is invalid"), nil
			}
			plan, err := planner.Preview(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			reminder, ok := common.FindReminder(plan, email)
			if !ok {
				return mcp.NewToolResultError("not_found: no reminder for " + email), nil
			}
			result, err := mcp.NewToolResultJSON(common.NewRecipientView(reminder, plan.Now, window))
			if err != nil {
				return nil, fmt.Errorf("encode get_digest result: %w", err)
			}
			return result, nil
		},
	)
}

// registerRunTool registers the tool that sends one round of reminders.
func registerRunTool(srv *mcpserver.MCPServer, runner common.Runner, timeout time.Duration) {
	srv.AddTool(
		mcp.NewTool(
			"unitask.run_reminders",
			mcp.WithDescription("Send one round of deadline reminders and return the run report."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			report, err := common.RunDetached(ctx, runner, timeout)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(common.NewRunView(report))
			if err != nil {
				return nil, fmt.Errorf("encode run_reminders result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, app.ErrRunAlreadyActive):
		return mcp.NewToolResultError("run_active: " + err.Error())
	case errors.Is(err, app.ErrSnapshotRead):
		return mcp.NewToolResultError("storage_unavailable: " + err.Error())
	case errors.Is(err, app.ErrMailerRequired):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return mcp.NewToolResultError("timeout: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
