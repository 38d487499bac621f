package language

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := map[string]string{
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
		" Python ":   ".py",
		"GO":         ".go",
	}
	for lang, want := range tests {
		t.Run(lang, func(t *testing.T) {
			assert.Equal(t, want, Resolve(lang))
		})
	}
}

func TestResolve_UnknownFallsBack(t *testing.T) {
	assert.Equal(t, FallbackExtension, Resolve("cobol"))
	assert.Equal(t, ".pf", Resolve(""))

	_, ok := Lookup("cobol")
	assert.False(t, ok)
}

func TestMustResolve(t *testing.T) {
	ext, err := MustResolve("rust")
	require.NoError(t, err)
	assert.Equal(t, ".rs", ext)

	_, err = MustResolve("cobol")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLanguage))
	assert.Contains(t, err.Error(), "python")
}

func TestSupported(t *testing.T) {
	names := Supported()
	assert.Len(t, names, 13)
	assert.IsIncreasing(t, names)
	for _, name := range names {
		_, ok := Lookup(name)
		assert.True(t, ok, name)
	}
}
