package dlp

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// pattern is a compiled detection rule. Blocking patterns (credentials)
// cause rejection in block mode; non-blocking ones (PII shapes) only ever
// redact or report.
type pattern struct {
	name     string
	expr     *regexp.Regexp
	blocking bool
}

// builtinPatterns covers the credential and PII shapes every deployment
// scans for. Order is stable so redaction output is deterministic.
func builtinPatterns() []pattern {
	mustCompile := func(name, re string, blocking bool) pattern {
		return pattern{name: name, expr: regexp.MustCompile(re), blocking: blocking}
	}
	return []pattern{
		mustCompile("credit_card", `\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`, false),
		mustCompile("ssn", `\b\d{3}-\d{2}-\d{4}\b`, false),
		mustCompile("api_key", `(?i)(api[_-]?key|apikey)['"]?\s*[:=]\s*['"]?([a-zA-Z0-9_\-]{32,})`, true),
		mustCompile("aws_key", `AKIA[0-9A-Z]{16}`, true),
		mustCompile("private_key", `-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----`, true),
		mustCompile("bearer_token", `(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`, false),
		mustCompile("password", `(?i)(password|passwd|pwd)['"]?\s*[:=]\s*['"]?([^\s'"]+)`, true),
		mustCompile("ip_internal", `\b10\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`, false),
	}
}

// patternSet is the threadsafe catalog of active patterns. Custom patterns
// registered at runtime participate in all subsequent scans.
type patternSet struct {
	mu       sync.RWMutex
	patterns []pattern
	names    map[string]bool
}

func newPatternSet() *patternSet {
	builtin := builtinPatterns()
	names := make(map[string]bool, len(builtin))
	for _, p := range builtin {
		names[p.name] = true
	}
	return &patternSet{patterns: builtin, names: names}
}

// add registers a custom pattern by name. Names must be unique; replacing an
// active pattern under concurrent scans is not supported.
func (ps *patternSet) add(name, re string, blocking bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("dlp: pattern name is required")
	}
	expr, err := regexp.Compile(re)
	if err != nil {
		return fmt.Errorf("dlp: invalid pattern for rule %s: %w", name, err)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.names[name] {
		return fmt.Errorf("dlp: pattern %s already registered", name)
	}
	ps.patterns = append(ps.patterns, pattern{name: name, expr: expr, blocking: blocking})
	ps.names[name] = true
	return nil
}

// snapshot returns the current patterns for one scan pass.
func (ps *patternSet) snapshot() []pattern {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]pattern, len(ps.patterns))
	copy(out, ps.patterns)
	return out
}
