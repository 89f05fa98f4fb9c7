package validator

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// exitCommandNotFound is the shell's exit status when the command does not exist.
const exitCommandNotFound = 127

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir string, command string) (stdout string, stderr string, exitCode int, err error)
}

// ExecRunner implements CommandRunner by shelling out through sh -c.
type ExecRunner struct{}

// Run executes the command in dir. A non-zero exit is reported through
// exitCode, not err; err is reserved for failures to run the command at all.
func (e *ExecRunner) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("%w: %s", models.ErrTimeout, command)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if errors.Is(err, exec.ErrNotFound) {
				return "", "", -1, fmt.Errorf("%w: %v", models.ErrToolUnavailable, err)
			}
			return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("exec: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}
	if exitCode == exitCommandNotFound {
		return stdoutBuf.String(), stderrBuf.String(), exitCode,
			fmt.Errorf("%w: %s", models.ErrToolUnavailable, strings.TrimSpace(stderrBuf.String()))
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}
