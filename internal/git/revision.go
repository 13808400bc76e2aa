// Package git stamps run manifests with the revision of the project checkout.
package git

import (
	stderrors "errors"

	"cda/pkg/errors"
	"github.com/go-git/go-git/v5"
)

// Revision describes the checked out commit of a working tree
type Revision struct {
	Hash   string
	Branch string
	Dirty  bool
}

// Short returns the abbreviated commit hash
func (r Revision) Short() string {
	if len(r.Hash) > 12 {
		return r.Hash[:12]
	}
	return r.Hash
}

func (r Revision) String() string {
	if r.Hash == "" {
		return ""
	}
	if r.Dirty {
		return r.Short() + "-dirty"
	}
	return r.Short()
}

// Describe opens the repository containing path, searching parent directories.
// A path outside any repository yields an empty Revision and no error.
func Describe(path string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if stderrors.Is(err, git.ErrRepositoryNotExists) {
		return Revision{}, nil
	}
	if err != nil {
		return Revision{}, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to open git repository").
			WithContext("path", path)
	}

	head, err := repo.Head()
	if err != nil {
		// a fresh repository without commits has no HEAD yet
		return Revision{}, nil
	}

	rev := Revision{Hash: head.Hash().String()}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if err == nil {
		if status, err := wt.Status(); err == nil {
			rev.Dirty = !status.IsClean()
		}
	}
	return rev, nil
}
