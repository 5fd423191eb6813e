// Package admission runs every inbound request through the ordered gate
// sequence: rate limit, authorization, inbound content scan, guarded
// dispatch, outbound content scan, audit. Stages are strictly sequential
// and fail fast; each rejection maps to its own terminal outcome.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"bulwark/internal/audit"
	"bulwark/internal/dispatch"
	"bulwark/internal/dlp"
	rlmodels "bulwark/internal/ratelimit/models"
	"bulwark/pkg/domain"
	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/requestcontext"
)

// RateLimiter decides whether a caller may consume quota right now.
type RateLimiter interface {
	Check(ctx context.Context, userID, tenant string, tokens int64) (*rlmodels.Decision, error)
}

// PolicyEvaluator authorizes one action. Implementations fail closed.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, principal domain.Principal, action string, resource map[string]any) bool
}

// Scanner inspects payloads for sensitive content.
type Scanner interface {
	ScanRequest(ctx context.Context, text string) (*dlp.Result, error)
	Scan(ctx context.Context, text string, mode dlp.Mode) (*dlp.Result, error)
}

// Dispatcher routes an admitted request to its upstream target.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// Auditor accepts the pipeline's one audit entry per request.
type Auditor interface {
	Emit(entry audit.Entry)
}

// Pipeline owns the admission sequence. One instance serves all requests.
type Pipeline struct {
	limiter    RateLimiter
	policy     PolicyEvaluator
	scanner    Scanner
	dispatcher Dispatcher
	auditor    Auditor
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures the Pipeline.
type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New constructs the Pipeline; every collaborator is required.
func New(limiter RateLimiter, policy PolicyEvaluator, scanner Scanner, dispatcher Dispatcher, auditor Auditor, opts ...Option) (*Pipeline, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter cannot be nil")
	}
	if policy == nil {
		return nil, fmt.Errorf("policy evaluator cannot be nil")
	}
	if scanner == nil {
		return nil, fmt.Errorf("scanner cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if auditor == nil {
		return nil, fmt.Errorf("auditor cannot be nil")
	}

	p := &Pipeline{
		limiter:    limiter,
		policy:     policy,
		scanner:    scanner,
		dispatcher: dispatcher,
		auditor:    auditor,
		logger:     slog.Default(),
		tracer:     otel.Tracer("bulwark/admission"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Admit runs req through every stage in order. Exactly one audit entry is
// emitted per call, on every path including cancellation; quota consumed
// before a later stage rejects is not rolled back.
func (p *Pipeline) Admit(ctx context.Context, req Request) (_ *Response, err error) {
	if req.Principal.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "request has no principal")
	}
	if req.Operation == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "operation is required")
	}

	requestID := requestcontext.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx, span := p.tracer.Start(ctx, "admission.admit")
	defer span.End()

	start := time.Now()
	entry := audit.Entry{
		RequestID: requestID,
		Timestamp: requestcontext.Now(ctx).UTC(),
		UserID:    req.Principal.UserID,
		Tenant:    req.Principal.Tenant,
		Role:      req.Principal.Role,
		ClientIP:  requestcontext.ClientIP(ctx),
		Operation: req.Operation,
		Target:    req.Target,
		Status:    audit.StatusInternalError,
	}
	defer func() {
		entry.LatencyMS = time.Since(start).Milliseconds()
		if ctx.Err() != nil && err != nil {
			entry.Status = audit.StatusInternalError
			entry.SetDetail("cancelled", true)
		}
		requestsTotal.WithLabelValues(string(entry.Status)).Inc()
		durationSeconds.Observe(time.Since(start).Seconds())
		p.auditor.Emit(entry)
	}()

	// Stage 1: rate limit.
	decision, err := p.checkRateLimit(ctx, req)
	if err != nil {
		entry.Status = audit.StatusInternalError
		return nil, err
	}
	if !decision.Allowed {
		entry.Status = audit.StatusRateLimited
		entry.RateLimitScope = string(decision.Scope)
		return nil, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded").
			WithDetail("scope", string(decision.Scope)).
			WithDetail("limit", decision.Limit).
			WithDetail("current", decision.Current).
			WithDetail("retry_after", decision.RetryAfter)
	}

	// Stage 2: authorization, fail closed.
	if !p.evaluatePolicy(ctx, req) {
		entry.Status = audit.StatusPolicyDenied
		denied := dErrors.New(dErrors.CodePolicyDenied, "not authorized for this operation").
			WithDetail("operation", req.Operation)
		if req.Target != "" {
			denied = denied.WithDetail("resource", req.Target)
		}
		return nil, denied
	}
	entry.PolicyAllowed = true

	// Stage 3: inbound scan. Credentials block, PII is redacted in place.
	forwarded, err := p.scanInbound(ctx, req.Messages, &entry)
	if err != nil {
		return nil, err
	}

	// Stage 4: guarded dispatch.
	result, err := p.dispatch(ctx, req, forwarded)
	if err != nil {
		switch dErrors.CodeOf(err) {
		case dErrors.CodeCircuitOpen, dErrors.CodeUpstream:
			entry.Status = audit.StatusUpstreamError
		default:
			entry.Status = audit.StatusInternalError
		}
		return nil, err
	}
	entry.ServedBy = result.ServedBy
	entry.InputTokens = result.InputTokens
	entry.OutputTokens = result.OutputTokens
	entry.CostUSD = result.CostUSD
	if result.FellBack {
		entry.SetDetail("fell_back", true)
	}

	// Stage 5: outbound scan. Advisory only; a produced response is
	// redacted but never blocked.
	content := p.scanOutbound(ctx, result.Content, &entry)

	entry.Status = audit.StatusSuccess
	return &Response{
		RequestID:    requestID,
		Content:      content,
		ServedBy:     result.ServedBy,
		FellBack:     result.FellBack,
		Redacted:     entry.Redacted,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      result.CostUSD,
	}, nil
}

func (p *Pipeline) checkRateLimit(ctx context.Context, req Request) (*rlmodels.Decision, error) {
	ctx, span := p.tracer.Start(ctx, "admission.rate_limit")
	defer span.End()

	decision, err := p.limiter.Check(ctx, req.Principal.UserID, req.Principal.Tenant, req.estimateTokens())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed")
	}
	return decision, nil
}

func (p *Pipeline) evaluatePolicy(ctx context.Context, req Request) bool {
	ctx, span := p.tracer.Start(ctx, "admission.policy")
	defer span.End()

	resource := map[string]any{"target": req.Target}
	return p.policy.Evaluate(ctx, req.Principal, req.Operation, resource)
}

// scanInbound scans every message, returning the redacted copy to forward.
func (p *Pipeline) scanInbound(ctx context.Context, messages []dispatch.Message, entry *audit.Entry) ([]dispatch.Message, error) {
	ctx, span := p.tracer.Start(ctx, "admission.scan_request")
	defer span.End()

	forwarded := make([]dispatch.Message, len(messages))
	for i, m := range messages {
		res, err := p.scanner.ScanRequest(ctx, m.Content)
		if err != nil {
			entry.Status = audit.StatusInternalError
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "content scan failed")
		}
		entry.Violations = mergeStrings(entry.Violations, res.Violations)
		entry.EntityTypes = mergeStrings(entry.EntityTypes, res.EntityTypes)
		if res.PIIDetected {
			entry.PIIDetected = true
		}
		if res.Blocked {
			entry.Status = audit.StatusContentBlocked
			p.logger.WarnContext(ctx, "request blocked by content scan",
				"request_id", entry.RequestID,
				"violations", res.Violations,
			)
			return nil, dErrors.New(dErrors.CodeContentBlocked, "request contains blocked content").
				WithDetail("violations", res.Violations)
		}
		if res.Redacted != m.Content {
			entry.Redacted = true
		}
		forwarded[i] = dispatch.Message{Role: m.Role, Content: res.Redacted}
	}
	return forwarded, nil
}

func (p *Pipeline) dispatch(ctx context.Context, req Request, messages []dispatch.Message) (*dispatch.Result, error) {
	ctx, span := p.tracer.Start(ctx, "admission.dispatch")
	defer span.End()

	return p.dispatcher.Dispatch(ctx, dispatch.Request{
		Target:      req.Target,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

// scanOutbound redacts the produced response. Scan failures are advisory:
// the unscanned content is returned rather than failing a request the
// upstream already served.
func (p *Pipeline) scanOutbound(ctx context.Context, content string, entry *audit.Entry) string {
	ctx, span := p.tracer.Start(ctx, "admission.scan_response")
	defer span.End()

	res, err := p.scanner.Scan(ctx, content, dlp.ModeRedact)
	if err != nil {
		p.logger.ErrorContext(ctx, "response scan failed",
			"request_id", entry.RequestID,
			"error", err,
		)
		return content
	}
	entry.EntityTypes = mergeStrings(entry.EntityTypes, res.EntityTypes)
	if res.PIIDetected {
		entry.PIIDetected = true
	}
	if res.Redacted != content {
		entry.Redacted = true
	}
	return res.Redacted
}

func mergeStrings(into, from []string) []string {
	for _, s := range from {
		found := false
		for _, existing := range into {
			if existing == s {
				found = true
				break
			}
		}
		if !found {
			into = append(into, s)
		}
	}
	return into
}
