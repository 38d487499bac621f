package collector

import "errors"

var (
	// ErrEmptyPath indicates an empty root directory argument.
	ErrEmptyPath = errors.New("directory path cannot be empty")

	// ErrDirectoryNotFound indicates the root directory does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrNotDirectory indicates the root exists but is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrInvalidExtension indicates an extension without a leading dot.
	ErrInvalidExtension = errors.New("extension must start with '.'")
)

// DefaultExcludeDirs are directory names skipped when Options.ExcludeDirs is nil.
// They hold version control data, dependencies, caches, virtual
// environments and build output.
var DefaultExcludeDirs = []string{
	".git", ".svn", ".hg",
	"node_modules", "vendor",
	".venv", "venv", "env",
	"__pycache__", ".mypy_cache", ".pytest_cache", ".tox",
	".idea", ".vscode", ".cache",
	"dist", "build", "target", ".next",
}

const (
	defaultMaxFileSize = 1024 * 1024 // 1MB
	maxMaxFileSize     = 10 * 1024 * 1024
	defaultWorkers     = 8
)

// Options configures a scan.
type Options struct {
	// ExcludeDirs are directory names pruned at any depth. Nil selects
	// DefaultExcludeDirs; an empty non-nil slice excludes nothing.
	ExcludeDirs []string

	// IgnorePatterns are glob patterns, relative to the root, of files and
	// directories to skip (see package ignore).
	IgnorePatterns []string

	// MaxFileSize is the largest file read, in bytes.
	// Default: 1MB, maximum: 10MB.
	MaxFileSize int64

	// Workers bounds concurrent file reads. Default: 8.
	Workers int

	// Language is recorded on every SourceFile.
	Language string
}

// SourceFile is one file read during a scan.
type SourceFile struct {
	// Path is the file path relative to the scan root, slash separated.
	Path string

	// Contents is the file's text.
	Contents string

	// Language is the language the scan was run for.
	Language string

	// Size is the file size in bytes.
	Size int64
}

// SkippedFile records a file that matched the scan but was not read.
type SkippedFile struct {
	Path   string
	Reason string
	Err    error
}

// Result contains the outcome of a scan.
type Result struct {
	// Root is the cleaned absolute root directory.
	Root string

	// Extension is the extension that was matched.
	Extension string

	// Files are the files read, sorted by Path.
	Files []SourceFile

	// Skipped are matching files that could not be read.
	Skipped []SkippedFile
}

// Contents returns the file contents in Files order.
func (r *Result) Contents() []string {
	out := make([]string, len(r.Files))
	for i, f := range r.Files {
		out[i] = f.Contents
	}
	return out
}
