// Package httptransport is the thin HTTP layer over the admission pipeline
// and its admin surfaces. Handlers delegate to services and stay free of
// business logic.
package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bulwark/internal/admission"
	"bulwark/internal/dispatch"
	rlmodels "bulwark/internal/ratelimit/models"
	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/requestcontext"
)

// Pipeline admits chat requests.
type Pipeline interface {
	Admit(ctx context.Context, req admission.Request) (*admission.Response, error)
}

// UsageReader reports a caller's quota consumption.
type UsageReader interface {
	Usage(ctx context.Context, userID, tenant string) (*rlmodels.Usage, error)
}

// ChatHandler wires the public gateway endpoints.
type ChatHandler struct {
	pipeline Pipeline
	usage    UsageReader
	logger   *slog.Logger
}

// NewChatHandler constructs the handler with its dependencies.
func NewChatHandler(pipeline Pipeline, usage UsageReader, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		pipeline: pipeline,
		usage:    usage,
		logger:   logger,
	}
}

// Register mounts the public endpoints on the router.
func (h *ChatHandler) Register(r chi.Router) {
	r.Post("/v1/chat", h.HandleChat)
	r.Get("/v1/usage", h.HandleUsage)
}

type chatRequest struct {
	Model       string             `json:"model,omitempty"`
	Messages    []dispatch.Message `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

// HandleChat handles POST /v1/chat requests.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	principal := requestcontext.Principal(ctx)
	start := time.Now()

	req, err := httputil.DecodeJSON[chatRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(req.Messages) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "messages are required"))
		return
	}

	resp, err := h.pipeline.Admit(ctx, admission.Request{
		Principal:   principal,
		Operation:   "chat:create",
		Target:      req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "chat request rejected",
			"request_id", requestID,
			"user_id", principal.UserID,
			"error", err,
		)
		writeAdmissionError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "chat request served",
		"request_id", requestID,
		"user_id", principal.UserID,
		"served_by", resp.ServedBy,
		"cost_usd", resp.CostUSD,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleUsage handles GET /v1/usage requests.
func (h *ChatHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := requestcontext.Principal(ctx)

	usage, err := h.usage.Usage(ctx, principal.UserID, principal.Tenant)
	if err != nil {
		h.logger.ErrorContext(ctx, "usage lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", principal.UserID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "usage lookup failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, usage)
}

// writeAdmissionError adds the Retry-After header for rate limited and
// breaker-open rejections before writing the error envelope.
func writeAdmissionError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if errors.As(err, &de) {
		switch retry := de.Detail["retry_after"].(type) {
		case int:
			if retry > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
			}
		case int64:
			if retry > 0 {
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
			}
		}
	}
	httputil.WriteError(w, err)
}
