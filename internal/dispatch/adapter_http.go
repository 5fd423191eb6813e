package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPAdapter speaks the OpenAI-compatible chat completion shape that every
// configured upstream exposes. The target name travels as the model field.
type HTTPAdapter struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// HTTPAdapterOption configures the HTTPAdapter.
type HTTPAdapterOption func(*HTTPAdapter)

func WithAdapterHTTPClient(h *http.Client) HTTPAdapterOption {
	return func(a *HTTPAdapter) {
		a.http = h
	}
}

// NewHTTPAdapter builds an adapter for an OpenAI-compatible upstream.
func NewHTTPAdapter(baseURL, apiKey string, opts ...HTTPAdapterOption) *HTTPAdapter {
	a := &HTTPAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete implements Adapter.
func (a *HTTPAdapter) Complete(ctx context.Context, target string, req Request) (Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model:       target,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("chat call to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Completion{}, fmt.Errorf("chat call to %s returned status %d", target, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return Completion{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Completion{}, fmt.Errorf("chat response from %s has no choices", target)
	}

	return Completion{
		Content:      chat.Choices[0].Message.Content,
		InputTokens:  chat.Usage.PromptTokens,
		OutputTokens: chat.Usage.CompletionTokens,
	}, nil
}
