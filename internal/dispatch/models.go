package dispatch

import "time"

// Message is one turn of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion to be routed to an upstream target.
type Request struct {
	Target      string    `json:"target,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Result is the outcome of a dispatched completion. ServedBy names the
// target that actually produced the response, which differs from the
// requested target after a fallback.
type Result struct {
	Content      string        `json:"content"`
	ServedBy     string        `json:"served_by"`
	FellBack     bool          `json:"fell_back"`
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	CostUSD      float64       `json:"cost_usd"`
	Latency      time.Duration `json:"-"`
}

// Completion is what an adapter returns before pricing is applied.
type Completion struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
}

// Pricing is the per-million-token rate card for one target.
type Pricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// Cost prices a completion in USD.
func (p Pricing) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1_000_000*p.InputPer1M +
		float64(outputTokens)/1_000_000*p.OutputPer1M
}

// defaultRateCard mirrors the published per-1M-token prices for the
// targets the gateway routes to. Unknown targets are rejected before
// dispatch rather than priced at zero.
func defaultRateCard() map[string]Pricing {
	return map[string]Pricing{
		"claude-3-sonnet": {InputPer1M: 3, OutputPer1M: 15},
		"claude-3-opus":   {InputPer1M: 15, OutputPer1M: 75},
		"gpt-4":           {InputPer1M: 30, OutputPer1M: 60},
		"gpt-3.5-turbo":   {InputPer1M: 0.5, OutputPer1M: 1.5},
		"local":           {InputPer1M: 0, OutputPer1M: 0},
	}
}
