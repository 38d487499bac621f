// Package language maps language identifiers to source file extensions.
package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FallbackExtension is returned for unrecognized languages. No real source
// file uses it, so a scan with it matches nothing.
const FallbackExtension = ".pf"

// ErrUnknownLanguage indicates a language identifier with no known extension.
var ErrUnknownLanguage = errors.New("unknown language")

var extensions = map[string]string{
	"python":     ".py",
	"javascript": ".js",
	"typescript": ".ts",
	"java":       ".java",
	"cpp":        ".cpp",
	"c":          ".c",
	"go":         ".go",
	"rust":       ".rs",
	"ruby":       ".rb",
	"php":        ".php",
	"swift":      ".swift",
	"kotlin":     ".kt",
	"scala":      ".scala",
}

func normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// Resolve returns the extension for language, or FallbackExtension.
func Resolve(language string) string {
	if ext, ok := Lookup(language); ok {
		return ext
	}
	return FallbackExtension
}

// Lookup returns the extension for language and whether it is known.
func Lookup(language string) (string, bool) {
	ext, ok := extensions[normalize(language)]
	return ext, ok
}

// MustResolve is the strict form of Resolve.
func MustResolve(language string) (string, error) {
	ext, ok := Lookup(language)
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownLanguage, language, strings.Join(Supported(), ", "))
	}
	return ext, nil
}

// Supported returns the known language identifiers, sorted.
func Supported() []string {
	names := make([]string, 0, len(extensions))
	for name := range extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
