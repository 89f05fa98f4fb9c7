package git

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// ExecRunner implements Runner with the git binary.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a git runner for the repository at repoPath.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

func (r *ExecRunner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// MergeBase returns the common ancestor of two refs.
func (r *ExecRunner) MergeBase(ctx context.Context, ref1, ref2 string) (string, error) {
	return r.run(ctx, "merge-base", ref1, ref2)
}

// ChangedFiles returns files changed since base, committed or not.
func (r *ExecRunner) ChangedFiles(ctx context.Context, base string) ([]string, error) {
	out, err := r.run(ctx, "diff", "--name-only", base)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// UntrackedFiles returns untracked, non-ignored files.
func (r *ExecRunner) UntrackedFiles(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ChangeSet returns the sorted union of files changed since base and
// untracked files.
func ChangeSet(ctx context.Context, d DiffReader, base string) ([]string, error) {
	changed, err := d.ChangedFiles(ctx, base)
	if err != nil {
		return nil, err
	}
	untracked, err := d.UntrackedFiles(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(changed)+len(untracked))
	var out []string
	for _, list := range [][]string{changed, untracked} {
		for _, f := range list {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
