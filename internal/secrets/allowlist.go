package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

var (
	// ErrInvalidRegex indicates an allowlist or rule pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// ProjectAllowlistFile is the per-repository allowlist read from the root
// of an ingested directory.
const ProjectAllowlistFile = ".gitleaks.toml"

// Allowlist holds patterns that must never be redacted.
type Allowlist struct {
	// Paths are matched against the chunk's file path.
	Paths []string
	// Regexes are matched against the candidate secret.
	Regexes []string
}

// Merge appends other's patterns to a.
func (a *Allowlist) Merge(other Allowlist) {
	a.Paths = append(a.Paths, other.Paths...)
	a.Regexes = append(a.Regexes, other.Regexes...)
}

// LoadAllowlists reads <projectDir>/.gitleaks.toml and userFile and returns
// their union. Either argument may be empty. Missing files are skipped;
// unparsable files or bad patterns are errors.
func LoadAllowlists(projectDir, userFile string) (Allowlist, error) {
	var merged Allowlist

	var paths []string
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ProjectAllowlistFile))
	}
	if userFile != "" {
		paths = append(paths, userFile)
	}

	for _, path := range paths {
		list, err := loadAllowlistFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Allowlist{}, err
		}
		merged.Merge(list)
	}
	return merged, nil
}

func loadAllowlistFile(path string) (Allowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}

	var doc struct {
		Allowlist struct {
			Paths   []string `toml:"paths"`
			Regexes []string `toml:"regexes"`
		} `toml:"allowlist"`
	}
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return Allowlist{}, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	list := Allowlist{Paths: doc.Allowlist.Paths, Regexes: doc.Allowlist.Regexes}
	if _, err := compileAll(list.Paths); err != nil {
		return Allowlist{}, fmt.Errorf("%s: path %w", path, err)
	}
	if _, err := compileAll(list.Regexes); err != nil {
		return Allowlist{}, fmt.Errorf("%s: content %w", path, err)
	}
	return list, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidRegex, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
