// Package executil provides shell execution utilities.
package executil

import (
	"context"
	"fmt"
	"os/exec"
)

// Executor runs host commands.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
}

// RealExecutor calls actual host commands.
type RealExecutor struct{}

// Run executes a command and returns its combined output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("exec %s: %w", cmd, err)
	}
	return out, nil
}

// Available reports whether a command exists on PATH.
func Available(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
