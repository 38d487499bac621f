package ignore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{"empty line", "", ""},
		{"whitespace only", "   ", ""},
		{"comment", "# this is a comment", ""},
		{"negation skipped", "!important.txt", ""},
		{"simple file glob", "*.log", "*.log"},
		{"simple directory", "node_modules", "**/node_modules/**"},
		{"directory with slash", "node_modules/", "**/node_modules/**"},
		{"nested path", "vendor/cache", "vendor/cache/**"},
		{"anchored directory", "/dist", "dist/**"},
		{"double star pattern", "**/build", "**/build/**"},
		{"file with extension", "file.txt", "**/file.txt"},
		{"crlf line ending", "*.pyc\r", "*.pyc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLine(tt.line); got != tt.expected {
				t.Errorf("parseLine(%q) = %q, want %q", tt.line, got, tt.expected)
			}
		})
	}
}

func TestParseProject(t *testing.T) {
	tmpDir := t.TempDir()

	gitignore := "# Build outputs\ndist/\nnode_modules/\n*.pyc\n__pycache__/\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte(gitignore), 0644); err != nil {
		t.Fatal(err)
	}
	local := "node_modules/\n*.log\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".codefinderignore"), []byte(local), 0644); err != nil {
		t.Fatal(err)
	}

	parser := NewParser(DefaultIgnoreFiles, []string{"fallback/**"})
	patterns, err := parser.ParseProject(tmpDir)
	if err != nil {
		t.Fatalf("ParseProject failed: %v", err)
	}

	count := 0
	for _, p := range patterns {
		if p == "**/node_modules/**" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected node_modules pattern once, got %d times in %v", count, patterns)
	}
	if len(patterns) != 5 {
		t.Errorf("expected 5 patterns, got %v", patterns)
	}
}

func TestParseProject_NoIgnoreFiles(t *testing.T) {
	fallback := []string{"**/.git/**"}
	parser := NewParser(DefaultIgnoreFiles, fallback)

	patterns, err := parser.ParseProject(t.TempDir())
	if err != nil {
		t.Fatalf("ParseProject failed: %v", err)
	}
	if len(patterns) != 1 || patterns[0] != fallback[0] {
		t.Errorf("patterns = %v, want fallback %v", patterns, fallback)
	}
}

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher([]string{"*.log", "**/node_modules/**", "dist/**", "**/secrets.txt"})

	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"app.log", false, true},
		{"logs/app.log", false, true},
		{"web/node_modules/left-pad/index.js", false, true},
		{"web/node_modules", true, true},
		{"node_modules", true, true},
		{"dist/bundle.js", false, true},
		{"dist", true, true},
		{"src/dist/bundle.js", false, false},
		{"config/secrets.txt", false, true},
		{"src/main.py", false, false},
		{"src", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := m.Match(tt.rel, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.rel, tt.isDir, got, tt.want)
			}
		})
	}

	var nilMatcher *Matcher
	if nilMatcher.Match("anything", false) {
		t.Error("nil matcher should match nothing")
	}
}

func TestValidatePatterns(t *testing.T) {
	if err := ValidatePatterns([]string{"**/vendor/**", "*.go"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidatePatterns([]string{"src/[unclosed"})
	var perr *PatternError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PatternError, got %v", err)
	}
	if perr.Pattern != "src/[unclosed" {
		t.Errorf("Pattern = %q", perr.Pattern)
	}
}

func TestDeduplicate(t *testing.T) {
	result := deduplicate([]string{"a", "b", "a", "c", "b", "d"})
	expected := []string{"a", "b", "c", "d"}

	if len(result) != len(expected) {
		t.Fatalf("got %d items, want %d", len(result), len(expected))
	}
	for i, v := range result {
		if v != expected[i] {
			t.Errorf("result[%d] = %q, want %q", i, v, expected[i])
		}
	}
}
