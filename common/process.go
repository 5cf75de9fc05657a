package common

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ProcessError is returned by Run when external program could not be started
// or finished unsuccessfully.
type ProcessError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Run starts tool with args and waits for it. Program stdout is logged line
// by line, stderr is collected and returned as part of the error.
func Run(ctx context.Context, log *zap.Logger, tool string, args ...string) error {
	path, err := exec.LookPath(tool)
	if err != nil {
		return &ProcessError{Tool: tool, Err: err}
	}

	cmd := exec.CommandContext(ctx, path, args...)
	HideConsole(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.StdoutPipe()
	if err != nil {
		return &ProcessError{Tool: tool, Err: fmt.Errorf("unable to redirect output: %w", err)}
	}

	log.Debug("Starting external program", zap.String("path", path), zap.Strings("args", args))
	if err := cmd.Start(); err != nil {
		return &ProcessError{Tool: tool, Err: err}
	}

	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		log.Debug(scanner.Text(), zap.String("tool", tool))
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return &ProcessError{Tool: tool, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	if scanErr != nil {
		return &ProcessError{Tool: tool, Err: fmt.Errorf("output pipe broken: %w", scanErr)}
	}
	return nil
}
