package admission

import (
	"bulwark/internal/dispatch"
	"bulwark/pkg/domain"
)

// Request is one inbound call to be admitted. Owned exclusively by the
// pipeline for the duration of Admit.
type Request struct {
	Principal   domain.Principal
	Operation   string
	Target      string
	Messages    []dispatch.Message
	MaxTokens   int
	Temperature float64
	// EstimatedTokens charges the daily token quota before dispatch. When
	// zero it is estimated from the payload size.
	EstimatedTokens int64
}

// estimateTokens approximates the prompt's token count at four characters
// per token, matching how the daily quota is provisioned.
func (r Request) estimateTokens() int64 {
	if r.EstimatedTokens > 0 {
		return r.EstimatedTokens
	}
	var chars int
	for _, m := range r.Messages {
		chars += len(m.Content)
	}
	return int64(chars / 4)
}

// Response is the admitted and completed request's outcome.
type Response struct {
	RequestID    string  `json:"request_id"`
	Content      string  `json:"content"`
	ServedBy     string  `json:"served_by"`
	FellBack     bool    `json:"fell_back,omitempty"`
	Redacted     bool    `json:"redacted,omitempty"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}
