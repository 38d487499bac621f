package search

import (
	"fmt"
	"io"
	"strings"

	"github.com/pavanjava/semantic-code-finder/internal/vectorstore"
)

var rule = strings.Repeat("-", 80)

// Print writes a human readable report of results. previewLines limits the
// code shown per result; zero or less prints the whole chunk.
func Print(w io.Writer, query string, results []vectorstore.SearchResult, previewLines int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\nSearching for: '%s'\n%s\n", query, rule)
	if len(results) == 0 {
		b.WriteString("No results.\n")
	}
	for i, r := range results {
		path := r.Payload.FilePath
		if path == "" {
			path = "Unknown"
		}
		fmt.Fprintf(&b, "\n[Result %d] Score: %.4f\n", i+1, r.Score)
		fmt.Fprintf(&b, "File: %s\n", path)
		fmt.Fprintf(&b, "Chunk %d | Tokens: %d\n", r.Payload.ChunkIndex, r.Payload.TokenCount)
		fmt.Fprintf(&b, "\nCode:\n%s...\n%s\n", Preview(r.Payload.Text, previewLines), rule)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Preview returns the first n lines of text.
func Preview(text string, n int) string {
	if n <= 0 {
		return text
	}
	lines := strings.SplitN(text, "\n", n+1)
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[:n], "\n")
}
