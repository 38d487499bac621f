package secrets

// Rule is one regexp detection rule. When Pattern has a capture group only
// the first group is redacted, so `password = "..."` keeps its left side.
type Rule struct {
	ID          string
	Description string
	Pattern     string
	// Keywords, when set, must appear (case-insensitively) in the text for
	// the rule to run.
	Keywords []string
}

// DefaultRules returns rules for credentials commonly committed to source.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "private-key",
			Description: "PEM private key header",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`,
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS access key ID",
			Pattern:     `\b((?:A3T[A-Z0-9]|AKIA|ASIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA)[A-Z0-9]{16})\b`,
		},
		{
			ID:          "aws-secret-access-key",
			Description: "AWS secret access key assignment",
			Pattern:     `(?i)(?:aws_secret_access_key|secret_access_key)\s*[:=]\s*['"]?([A-Za-z0-9/+=]{40})`,
			Keywords:    []string{"secret"},
		},
		{
			ID:          "github-token",
			Description: "GitHub token",
			Pattern:     `\b((?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36}|github_pat_[A-Za-z0-9_]{22,})\b`,
		},
		{
			ID:          "gitlab-token",
			Description: "GitLab personal access token",
			Pattern:     `\b(glpat-[A-Za-z0-9\-_]{20,})`,
		},
		{
			ID:          "slack-token",
			Description: "Slack token",
			Pattern:     `\b(xox[baprs]-[A-Za-z0-9\-]{10,})`,
		},
		{
			ID:          "stripe-key",
			Description: "Stripe API key",
			Pattern:     `\b((?:sk|rk)_(?:live|test)_[A-Za-z0-9]{24,})`,
		},
		{
			ID:          "openai-api-key",
			Description: "OpenAI or Anthropic API key",
			Pattern:     `\b(sk-(?:ant-|proj-)?[A-Za-z0-9_\-]{40,})`,
		},
		{
			ID:          "google-api-key",
			Description: "Google API key",
			Pattern:     `\b(AIza[A-Za-z0-9_\-]{35})`,
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `\b(eyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,})`,
		},
		{
			ID:          "connection-string",
			Description: "URL with embedded credentials",
			Pattern:     `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqps?)://[^:/\s'"]+:([^@\s'"]+)@`,
		},
		{
			ID:          "password-assignment",
			Description: "Hardcoded password or secret assignment",
			Pattern:     `(?i)\b[A-Za-z0-9_]*(?:password|passwd|pwd|secret|api_?key|token)[A-Za-z0-9_]*['"]?\s*(?::=|=|:)\s*['"]([^'"\s]{8,})['"]`,
			Keywords:    []string{"pass", "pwd", "secret", "key", "token"},
		},
	}
}
