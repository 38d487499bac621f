// Package sanitize turns untrusted input into safe collection names and
// directory paths.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const (
	// MaxCollectionLength is the longest collection name the vector stores
	// accept.
	MaxCollectionLength = 64

	// hashSuffixLength is len("_") plus eight hex digits.
	hashSuffixLength = 9

	// DefaultCollection is returned when nothing usable is left of the input.
	DefaultCollection = "default"
)

// CollectionName maps s onto ^[a-z0-9_-]{1,64}$.
//
// Letters are lowercased, every other disallowed rune becomes an
// underscore, runs of underscores collapse and leading or trailing
// separators are trimmed. Names that are still too long are cut and given a
// hash of the full name so distinct inputs stay distinct.
//
//	"My Project!"        -> "my_project"
//	"github.com/acme/api" -> "github_com_acme_api"
//	"" or "!!!"          -> "default"
func CollectionName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := b.String()
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	name = strings.Trim(name, "_-")
	if name == "" {
		return DefaultCollection
	}
	if len(name) > MaxCollectionLength {
		name = truncateWithHash(name)
	}
	return name
}

// CollectionForDir names a collection after the base name of dir, e.g.
// "/src/payments-api" -> "payments-api_chunks".
func CollectionForDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	base := filepath.Base(abs)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	name := CollectionName(base)
	if len(name)+len("_chunks") > MaxCollectionLength {
		return truncateWithHash(name + "_chunks")
	}
	return name + "_chunks"
}

func truncateWithHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	suffix := "_" + hex.EncodeToString(sum[:])[:8]
	head := strings.TrimRight(s[:MaxCollectionLength-hashSuffixLength], "_-")
	return head + suffix
}
