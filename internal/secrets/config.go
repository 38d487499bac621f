package secrets

import (
	"fmt"

	"github.com/pavanjava/semantic-code-finder/internal/config"
)

const (
	// EngineRules selects the built-in regexp rules.
	EngineRules = "rules"
	// EngineGitleaks selects the gitleaks default rule set.
	EngineGitleaks = "gitleaks"

	// DefaultRedaction replaces each detected secret.
	DefaultRedaction = "[REDACTED]"
)

// Config configures a Scrubber.
type Config struct {
	Enabled         bool
	Engine          string
	RedactionString string

	// Rules is used by the rules engine. Nil means DefaultRules.
	Rules []Rule

	Allowlist Allowlist
}

// DefaultConfig enables the rules engine with no allowlist.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Engine:          EngineRules,
		RedactionString: DefaultRedaction,
	}
}

// FromAppConfig builds a Config from the secrets section of the application
// config. projectDir, when set, contributes its .gitleaks.toml allowlist.
func FromAppConfig(cfg config.SecretsConfig, projectDir string) (*Config, error) {
	userFile := ""
	if cfg.AllowlistFile != "" {
		expanded, err := config.ExpandHome(cfg.AllowlistFile)
		if err != nil {
			return nil, fmt.Errorf("expanding allowlist_file: %w", err)
		}
		userFile = expanded
	}

	list, err := LoadAllowlists(projectDir, userFile)
	if err != nil {
		return nil, fmt.Errorf("loading allowlists: %w", err)
	}
	list.Regexes = append(list.Regexes, cfg.AllowList...)

	return &Config{
		Enabled:         cfg.Enabled,
		Engine:          cfg.Engine,
		RedactionString: cfg.RedactionString,
		Allowlist:       list,
	}, nil
}

// ForProject returns a constructor for Scrubbers that also honor the
// .gitleaks.toml found in an ingested root.
func ForProject(cfg config.SecretsConfig) func(root string) (Scrubber, error) {
	return func(root string) (Scrubber, error) {
		c, err := FromAppConfig(cfg, root)
		if err != nil {
			return nil, err
		}
		return New(c)
	}
}
