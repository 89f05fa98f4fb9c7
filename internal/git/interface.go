// Package git reads the state of the repository under validation.
package git

import "context"

// DiffReader lists the files a change touches.
type DiffReader interface {
	// ChangedFiles returns files that differ from base, including
	// uncommitted changes in the working tree.
	ChangedFiles(ctx context.Context, base string) ([]string, error)
	// UntrackedFiles returns files not yet known to git, honouring .gitignore.
	UntrackedFiles(ctx context.Context) ([]string, error)
}

// Runner is the git surface used by qualgate.
type Runner interface {
	DiffReader
	// CurrentBranch returns the name of the checked out branch.
	CurrentBranch(ctx context.Context) (string, error)
	// MergeBase returns the common ancestor of two refs.
	MergeBase(ctx context.Context, ref1, ref2 string) (string, error)
}
