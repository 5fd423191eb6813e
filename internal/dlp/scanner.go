// Package dlp scans text payloads for sensitive content, combining a
// deterministic pattern matcher with a pluggable entity classifier.
package dlp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Mode selects what a scan does with its detections.
type Mode string

const (
	// ModeBlock rejects payloads containing credential patterns.
	ModeBlock Mode = "block"
	// ModeRedact replaces detections with placeholders.
	ModeRedact Mode = "redact"
	// ModeAlert reports detections without altering the payload.
	ModeAlert Mode = "alert"
)

// IsValid checks if the mode is one of the supported enum values.
func (m Mode) IsValid() bool {
	switch m {
	case ModeBlock, ModeRedact, ModeAlert:
		return true
	}
	return false
}

// Result is the immutable outcome of one scan.
type Result struct {
	// Blocked is true only in block mode, and only when a blocking
	// (credential) pattern matched. PII alone never blocks.
	Blocked bool
	// PIIDetected reports whether the entity classifier found anything.
	PIIDetected bool
	// Redacted is always a safely-displayable string; the identity
	// transform of the input when nothing matched or mode is not redact.
	Redacted string
	// Violations holds matched pattern names, never matched content.
	Violations []string
	// EntityTypes holds detected entity type names.
	EntityTypes []string
	// Confidence maps entity type to the classifier's score.
	Confidence map[string]float64
}

// entityPlaceholders maps classifier entity types to their redaction tokens.
// Unlisted types fall back to the generic placeholder.
var entityPlaceholders = map[string]string{
	"PERSON":        "<NAME_REDACTED>",
	"EMAIL_ADDRESS": "<EMAIL_REDACTED>",
	"PHONE_NUMBER":  "<PHONE_REDACTED>",
	"CREDIT_CARD":   "<CARD_REDACTED>",
	"US_SSN":        "<SSN_REDACTED>",
}

const genericPlaceholder = "<REDACTED>"

// Scanner composes the pattern matcher with the entity classifier.
// Safe for concurrent use; custom patterns may be added at runtime.
type Scanner struct {
	patterns   *patternSet
	classifier Classifier
	logger     *slog.Logger
}

// Option configures the Scanner.
type Option func(*Scanner)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner constructs a Scanner with the builtin pattern set.
func NewScanner(classifier Classifier, opts ...Option) *Scanner {
	if classifier == nil {
		classifier = NopClassifier{}
	}
	s := &Scanner{
		patterns:   newPatternSet(),
		classifier: classifier,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPattern registers a custom pattern; it participates in all future scans.
func (s *Scanner) AddPattern(name, re string, blocking bool) error {
	if err := s.patterns.add(name, re, blocking); err != nil {
		return err
	}
	s.logger.Info("custom dlp pattern registered", "name", name, "blocking", blocking)
	return nil
}

// Scan inspects text under the given mode.
//
// In block mode, a blocking-pattern match sets Blocked and returns without
// classifying or redacting; the caller must not forward the payload. In
// redact mode, classifier entity spans are replaced first (broader spans),
// then matched patterns; the reverse order could re-match text inside an
// already-inserted placeholder. Alert mode reports
// detections and leaves the payload untouched.
func (s *Scanner) Scan(ctx context.Context, text string, mode Mode) (*Result, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("dlp: unsupported mode %q", mode)
	}

	active := s.patterns.snapshot()

	var violations []string
	var matched []pattern
	for _, p := range active {
		if p.expr.MatchString(text) {
			violations = append(violations, p.name)
			matched = append(matched, p)
			scanMatches.WithLabelValues(p.name).Inc()
		}
	}

	if mode == ModeBlock {
		for _, p := range matched {
			if p.blocking {
				s.logger.WarnContext(ctx, "payload blocked by dlp", "pattern", p.name)
				return &Result{
					Blocked:    true,
					Redacted:   text,
					Violations: violations,
				}, nil
			}
		}
	}

	entities, err := s.classifier.Classify(ctx, text)
	if err != nil {
		// Classification is advisory; pattern enforcement already ran.
		s.logger.WarnContext(ctx, "entity classifier unavailable", "error", err)
		entities = nil
	}

	entityTypes, confidence := summarizeEntities(entities)

	redacted := text
	if mode == ModeRedact && (len(matched) > 0 || len(entities) > 0) {
		redacted = redactEntities(text, entities)
		redacted = redactPatterns(redacted, matched)
	}

	return &Result{
		Blocked:     false,
		PIIDetected: len(entities) > 0,
		Redacted:    redacted,
		Violations:  violations,
		EntityTypes: entityTypes,
		Confidence:  confidence,
	}, nil
}

// ScanRequest applies the inbound admission semantics in one pass: a
// blocking-pattern match blocks as in ModeBlock, anything else is redacted
// as in ModeRedact. This keeps the classifier round trip to one per payload
// where running the two modes back to back would cost two.
func (s *Scanner) ScanRequest(ctx context.Context, text string) (*Result, error) {
	active := s.patterns.snapshot()

	var violations []string
	var matched []pattern
	for _, p := range active {
		if p.expr.MatchString(text) {
			violations = append(violations, p.name)
			matched = append(matched, p)
			scanMatches.WithLabelValues(p.name).Inc()
		}
	}

	for _, p := range matched {
		if p.blocking {
			s.logger.WarnContext(ctx, "payload blocked by dlp", "pattern", p.name)
			return &Result{
				Blocked:    true,
				Redacted:   text,
				Violations: violations,
			}, nil
		}
	}

	entities, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.logger.WarnContext(ctx, "entity classifier unavailable", "error", err)
		entities = nil
	}

	entityTypes, confidence := summarizeEntities(entities)

	redacted := text
	if len(matched) > 0 || len(entities) > 0 {
		redacted = redactEntities(text, entities)
		redacted = redactPatterns(redacted, matched)
	}

	return &Result{
		Blocked:     false,
		PIIDetected: len(entities) > 0,
		Redacted:    redacted,
		Violations:  violations,
		EntityTypes: entityTypes,
		Confidence:  confidence,
	}, nil
}

// summarizeEntities dedupes entity types and keeps the highest score per type.
func summarizeEntities(entities []Entity) ([]string, map[string]float64) {
	if len(entities) == 0 {
		return nil, nil
	}
	confidence := make(map[string]float64)
	var types []string
	for _, e := range entities {
		if score, seen := confidence[e.Type]; !seen || e.Score > score {
			if !seen {
				types = append(types, e.Type)
			}
			confidence[e.Type] = e.Score
		}
	}
	sort.Strings(types)
	return types, confidence
}

// redactEntities replaces classifier spans with type-specific placeholders.
// Spans are sorted ascending and the output rebuilt from the original text,
// so offsets never shift; overlapping spans collapse into the leftmost
// placeholder.
func redactEntities(text string, entities []Entity) string {
	if len(entities) == 0 {
		return text
	}

	spans := make([]Entity, len(entities))
	copy(spans, entities)
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start == spans[j].Start {
			return spans[i].End > spans[j].End
		}
		return spans[i].Start < spans[j].Start
	})

	// Drop spans contained in an earlier, wider span.
	kept := spans[:0]
	lastEnd := -1
	for _, e := range spans {
		if e.Start >= len(text) || e.End > len(text) || e.Start >= e.End {
			continue
		}
		if e.Start < lastEnd {
			continue
		}
		kept = append(kept, e)
		lastEnd = e.End
	}

	var b strings.Builder
	prev := 0
	for _, e := range kept {
		b.WriteString(text[prev:e.Start])
		if token, ok := entityPlaceholders[e.Type]; ok {
			b.WriteString(token)
		} else {
			b.WriteString(genericPlaceholder)
		}
		prev = e.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

// redactPatterns replaces every occurrence of each matched pattern with a
// placeholder naming that pattern.
func redactPatterns(text string, matched []pattern) string {
	for _, p := range matched {
		token := "<" + strings.ToUpper(p.name) + "_REDACTED>"
		text = p.expr.ReplaceAllString(text, token)
	}
	return text
}
