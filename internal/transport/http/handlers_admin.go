package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bulwark/internal/circuit"
	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/requestcontext"
)

// LimitAdmin resets quota counters.
type LimitAdmin interface {
	ResetUser(ctx context.Context, userID string) error
}

// PatternAdmin registers custom scan patterns at runtime.
type PatternAdmin interface {
	AddPattern(name, re string, blocking bool) error
}

// BreakerReader exposes the breaker table for inspection.
type BreakerReader interface {
	Snapshot() []circuit.Record
}

// AdminHandler wires the operator endpoints. Mounted behind RequireRole.
type AdminHandler struct {
	limits   LimitAdmin
	patterns PatternAdmin
	breakers BreakerReader
	logger   *slog.Logger
}

// NewAdminHandler constructs the handler with its dependencies.
func NewAdminHandler(limits LimitAdmin, patterns PatternAdmin, breakers BreakerReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		limits:   limits,
		patterns: patterns,
		breakers: breakers,
		logger:   logger,
	}
}

// Register mounts the admin endpoints on the router.
func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/admin/ratelimit/reset", h.HandleResetLimits)
	r.Post("/admin/dlp/patterns", h.HandleAddPattern)
	r.Get("/admin/circuits", h.HandleCircuits)
}

type resetRequest struct {
	UserID string `json:"user_id"`
}

// HandleResetLimits handles POST /admin/ratelimit/reset requests.
func (h *AdminHandler) HandleResetLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.DecodeJSON[resetRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.UserID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "user_id is required"))
		return
	}

	if err := h.limits.ResetUser(ctx, req.UserID); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "reset failed"))
		return
	}

	h.logger.InfoContext(ctx, "rate limits reset by admin",
		"request_id", requestcontext.RequestID(ctx),
		"admin", requestcontext.Principal(ctx).UserID,
		"user_id", req.UserID,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type addPatternRequest struct {
	Name     string `json:"name"`
	Regex    string `json:"regex"`
	Blocking bool   `json:"blocking"`
}

// HandleAddPattern handles POST /admin/dlp/patterns requests.
func (h *AdminHandler) HandleAddPattern(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.DecodeJSON[addPatternRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Name == "" || req.Regex == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "name and regex are required"))
		return
	}

	if err := h.patterns.AddPattern(req.Name, req.Regex, req.Blocking); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "pattern rejected"))
		return
	}

	h.logger.InfoContext(ctx, "custom pattern added by admin",
		"request_id", requestcontext.RequestID(ctx),
		"admin", requestcontext.Principal(ctx).UserID,
		"name", req.Name,
		"blocking", req.Blocking,
	)
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// HandleCircuits handles GET /admin/circuits requests.
func (h *AdminHandler) HandleCircuits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"circuits": h.breakers.Snapshot(),
	})
}
