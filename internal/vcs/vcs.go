// Package vcs reads git metadata for an ingested directory.
package vcs

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepository indicates the directory is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Info describes the checked out revision of a work tree.
type Info struct {
	// Root is the work tree root.
	Root string
	// Branch is the short branch name, empty when HEAD is detached or unborn.
	Branch string
	// Commit is the full HEAD commit hash, empty in a repository without commits.
	Commit string
}

// Detached reports whether HEAD points at a commit rather than a branch.
func (i Info) Detached() bool {
	return i.Commit != "" && i.Branch == ""
}

// ShortCommit returns the first 12 characters of Commit.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 12 {
		return i.Commit[:12]
	}
	return i.Commit
}

// Detect opens the repository containing dir, searching parent directories
// for .git.
func Detect(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Info{}, fmt.Errorf("%w: %s", ErrNotRepository, dir)
		}
		return Info{}, fmt.Errorf("opening repository at %s: %w", dir, err)
	}

	var info Info
	if wt, err := repo.Worktree(); err == nil {
		info.Root = wt.Filesystem.Root()
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return info, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("resolving HEAD: %w", err)
	}

	info.Commit = head.Hash().String()
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	return info, nil
}
