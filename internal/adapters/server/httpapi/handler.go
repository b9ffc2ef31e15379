// Package httpapi provides the REST adapter over reminder runs.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evanschultz/unitask/internal/adapters/server/common"
	"github.com/evanschultz/unitask/internal/app"
	"github.com/evanschultz/unitask/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Planner computes a reminder plan without sending.
type Planner = common.Planner

// Runner executes one reminder run.
type Runner = common.Runner

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	planner    Planner
	runner     Runner
	window     time.Duration
	runTimeout time.Duration
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// DigestsResponse is the body of GET /digests.
type DigestsResponse = common.DigestsView

// RecipientView is the body of GET /digests/{email}.
type RecipientView = common.RecipientView

// RunResponse is the body of POST /runs.
type RunResponse = common.RunView

// NewHandler constructs one HTTP API adapter. window labels task urgency in responses;
// runTimeout bounds POST /runs, which is detached from the request once started.
func NewHandler(planner Planner, runner Runner, window, runTimeout time.Duration) *Handler {
	return &Handler{
		planner:    planner,
		runner:     runner,
		window:     window,
		runTimeout: runTimeout,
	}
}

// Router returns the chi router for the API subtree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, APIError{Code: "method_not_allowed", Message: "method not allowed"})
	})
	r.Get("/digests", h.handleListDigests)
	r.Get("/digests/{email}", h.handleGetDigest)
	r.Post("/runs", h.handleRun)
	return r
}

// handleListDigests serves GET `/digests`.
func (h *Handler) handleListDigests(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.preview(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, common.NewDigestsView(plan, h.window))
}

// handleGetDigest serves GET `/digests/{email}`.
func (h *Handler) handleGetDigest(w http.ResponseWriter, r *http.Request) {
	email, err := domain.NormalizeEmail(chi.URLParam(r, "email"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: "email is invalid"})
		return
	}
	plan, ok := h.preview(w, r)
	if !ok {
		return
	}
	if reminder, ok := common.FindReminder(plan, email); ok {
		writeJSON(w, http.StatusOK, common.NewRecipientView(reminder, plan.Now, h.window))
		return
	}
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: fmt.Sprintf("no reminder for %s", email),
		Hint:    "The user may have nothing due, or notifications turned off.",
	})
}

// handleRun serves POST `/runs`.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{Code: "service_unavailable", Message: "reminder runs are not configured"})
		return
	}
	report, err := common.RunDetached(r.Context(), h.runner, h.runTimeout)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewRunView(report))
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) (app.Plan, bool) {
	if h.planner == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{Code: "service_unavailable", Message: "reminder preview is not configured"})
		return app.Plan{}, false
	}
	plan, err := h.planner.Preview(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return app.Plan{}, false
	}
	return plan, true
}

// writeErrorFrom maps app errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrRunAlreadyActive):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "run_active",
			Message: err.Error(),
			Hint:    "Retry once the current run finishes.",
		})
	case errors.Is(err, app.ErrSnapshotRead):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "storage_unavailable",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrMailerRequired):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusGatewayTimeout, APIError{
			Code:    "timeout",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":%q}}`, strings.TrimSpace(err.Error())), http.StatusInternalServerError)
	}
}
