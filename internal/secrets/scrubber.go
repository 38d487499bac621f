package secrets

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrUnknownEngine is returned by New for an unsupported engine name.
var ErrUnknownEngine = errors.New("unknown secrets engine")

// Scrubber redacts secrets from chunk text. path is the chunk's source file
// and is checked against the allowlist's path patterns.
//
// Implementations are safe for concurrent use.
type Scrubber interface {
	Scrub(path, text string) Result
}

// Finding is one redacted secret. The secret value itself is never kept.
type Finding struct {
	RuleID string `json:"rule_id"`
	Line   int    `json:"line"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Result is the outcome of scrubbing one text.
type Result struct {
	Text     string    `json:"-"`
	Findings []Finding `json:"findings,omitempty"`
}

// Redacted reports whether anything was replaced.
func (r Result) Redacted() bool { return len(r.Findings) > 0 }

// RuleCounts returns the number of findings per rule ID.
func (r Result) RuleCounts() map[string]int {
	counts := make(map[string]int, len(r.Findings))
	for _, f := range r.Findings {
		counts[f.RuleID]++
	}
	return counts
}

// New builds the Scrubber selected by cfg.Engine. A nil cfg means
// DefaultConfig; a disabled cfg yields a Noop scrubber.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return Noop{}, nil
	}
	redaction := cfg.RedactionString
	if redaction == "" {
		redaction = DefaultRedaction
	}

	paths, err := compileAll(cfg.Allowlist.Paths)
	if err != nil {
		return nil, fmt.Errorf("allowlist path %w", err)
	}
	allowed, err := compileAll(cfg.Allowlist.Regexes)
	if err != nil {
		return nil, fmt.Errorf("allowlist content %w", err)
	}

	switch cfg.Engine {
	case EngineRules, "":
		rules := cfg.Rules
		if rules == nil {
			rules = DefaultRules()
		}
		compiled, err := compileRules(rules)
		if err != nil {
			return nil, err
		}
		return &ruleScrubber{rules: compiled, redaction: redaction, paths: paths, allowed: allowed}, nil
	case EngineGitleaks:
		return newGitleaksScrubber(redaction, paths, cfg.Allowlist)
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s)", ErrUnknownEngine, cfg.Engine, EngineRules, EngineGitleaks)
	}
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []string
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %s: pattern is required", r.ID)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w: %v", r.ID, ErrInvalidRegex, err)
		}
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		out = append(out, compiledRule{id: r.ID, pattern: re, keywords: kws})
	}
	return out, nil
}

type ruleScrubber struct {
	rules     []compiledRule
	redaction string
	paths     []*regexp.Regexp
	allowed   []*regexp.Regexp
}

func (s *ruleScrubber) Scrub(path, text string) Result {
	if text == "" || matchesAny(s.paths, path) {
		return Result{Text: text}
	}

	lower := ""
	var spans []span
	for _, rule := range s.rules {
		if len(rule.keywords) > 0 {
			if lower == "" {
				lower = strings.ToLower(text)
			}
			if !containsAny(lower, rule.keywords) {
				continue
			}
		}
		for _, m := range rule.pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			if len(m) >= 4 && m[2] >= 0 {
				start, end = m[2], m[3]
			}
			if start == end || matchesAny(s.allowed, text[m[0]:m[1]]) {
				continue
			}
			spans = append(spans, span{start: start, end: end, ruleID: rule.id})
		}
	}
	return redact(text, spans, s.redaction)
}

type span struct {
	start, end int
	ruleID     string
}

// redact replaces spans in text, merging overlaps. Findings are reported in
// text order, one per merged span.
func redact(text string, spans []span, redaction string) Result {
	if len(spans) == 0 {
		return Result{Text: text}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	b.Grow(len(text))
	findings := make([]Finding, 0, len(merged))
	prev := 0
	for _, sp := range merged {
		b.WriteString(text[prev:sp.start])
		b.WriteString(redaction)
		prev = sp.end
		findings = append(findings, Finding{
			RuleID: sp.ruleID,
			Line:   strings.Count(text[:sp.start], "\n") + 1,
			Start:  sp.start,
			End:    sp.end,
		})
	}
	b.WriteString(text[prev:])
	return Result{Text: b.String(), Findings: findings}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Noop returns text unchanged.
type Noop struct{}

// Scrub implements Scrubber.
func (Noop) Scrub(_, text string) Result { return Result{Text: text} }

var (
	_ Scrubber = (*ruleScrubber)(nil)
	_ Scrubber = Noop{}
)
