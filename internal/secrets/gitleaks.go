package secrets

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// gitleaksScrubber runs the gitleaks default rule set. The detector keeps
// per-scan state, so scans are serialized.
type gitleaksScrubber struct {
	mu        sync.Mutex
	detector  *detect.Detector
	redaction string
	paths     []*regexp.Regexp
}

func newGitleaksScrubber(redaction string, paths []*regexp.Regexp, list Allowlist) (*gitleaksScrubber, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}
	if len(list.Regexes) > 0 {
		allow := &gitleaksconfig.Allowlist{Description: "codefinder allowlist"}
		for _, p := range list.Regexes {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("allowlist content %w %q: %v", ErrInvalidRegex, p, err)
			}
			allow.Regexes = append(allow.Regexes, (*gitleaksregexp.Regexp)(re))
		}
		detector.Config.Allowlists = append(detector.Config.Allowlists, allow)
	}
	return &gitleaksScrubber{detector: detector, redaction: redaction, paths: paths}, nil
}

func (s *gitleaksScrubber) Scrub(path, text string) Result {
	if strings.TrimSpace(text) == "" || matchesAny(s.paths, path) {
		return Result{Text: text}
	}

	s.mu.Lock()
	found := s.detector.DetectString(text)
	s.mu.Unlock()

	var spans []span
	for _, f := range found {
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" {
			continue
		}
		// Locate every occurrence; gitleaks reports one finding per line.
		for offset := 0; offset < len(text); {
			i := strings.Index(text[offset:], secret)
			if i < 0 {
				break
			}
			start := offset + i
			spans = append(spans, span{start: start, end: start + len(secret), ruleID: f.RuleID})
			offset = start + len(secret)
		}
	}
	return redact(text, spans, s.redaction)
}

var _ Scrubber = (*gitleaksScrubber)(nil)
