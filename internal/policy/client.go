// Package policy is a thin fail-closed client to the external authorization
// decision oracle.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bulwark/pkg/domain"
)

const decisionPath = "/v1/data/llm/authz/allow"

// Client queries the remote decision oracle. By default every failure mode
// (transport error, timeout, non-200, malformed body) evaluates to deny,
// the opposite default from the rate limiter: authorization must never
// silently pass traffic when its dependency is down. WithFailOpen makes
// the per-stage tradeoff explicit rather than baked in.
type Client struct {
	baseURL  string
	failOpen bool
	http     *http.Client
	logger   *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithFailOpen flips the oracle-unreachable default from deny to allow.
// Only for deployments that accept the availability-over-security tradeoff.
func WithFailOpen(failOpen bool) Option {
	return func(c *Client) {
		c.failOpen = failOpen
	}
}

// New constructs a policy client with a short per-call timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type evaluateInput struct {
	Input struct {
		User     domain.Principal `json:"user"`
		Action   string           `json:"action"`
		Resource map[string]any   `json:"resource"`
	} `json:"input"`
}

type evaluateOutput struct {
	Result bool `json:"result"`
}

// Evaluate asks the oracle whether principal may perform action on resource.
func (c *Client) Evaluate(ctx context.Context, principal domain.Principal, action string, resource map[string]any) bool {
	var input evaluateInput
	input.Input.User = principal
	input.Input.Action = action
	input.Input.Resource = resource

	var output evaluateOutput
	if err := c.post(ctx, decisionPath, input, &output); err != nil {
		c.logger.ErrorContext(ctx, "policy evaluation failed",
			"user_id", principal.UserID,
			"action", action,
			"fail_open", c.failOpen,
			"error", err,
		)
		evaluationsTotal.WithLabelValues("error").Inc()
		return c.failOpen
	}

	c.logger.InfoContext(ctx, "authorization decision",
		"user_id", principal.UserID,
		"action", action,
		"allowed", output.Result,
	)
	if output.Result {
		evaluationsTotal.WithLabelValues("allow").Inc()
	} else {
		evaluationsTotal.WithLabelValues("deny").Inc()
	}
	return output.Result
}

// Permissions fetches the principal's permission document. Failures return
// an empty set rather than an error; callers treat permissions as advisory.
func (c *Client) Permissions(ctx context.Context, principal domain.Principal) map[string]any {
	var input evaluateInput
	input.Input.User = principal

	var output struct {
		Result map[string]any `json:"result"`
	}
	if err := c.post(ctx, "/v1/data/llm/authz/permissions", input, &output); err != nil {
		c.logger.ErrorContext(ctx, "permissions lookup failed",
			"user_id", principal.UserID,
			"error", err,
		)
		return map[string]any{}
	}
	return output.Result
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal oracle input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("oracle call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode oracle response: %w", err)
	}
	return nil
}
