// Package llm hands a rendered prompt to the reasoning step and returns its
// free-text answer. The reasoning itself is opaque to the rest of friday.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrisonrobin/friday/pkg/logging"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single reasoning call.
const DefaultTimeout = 5 * time.Minute

// ErrTimeout is returned when the reasoner runs past its timeout.
var ErrTimeout = errors.New("reasoner timed out")

type Reasoner interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ClaudeCLI runs the claude command in print mode with the prompt on stdin.
type ClaudeCLI struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration

	log *zap.Logger
}

func NewClaudeCLI(command string, timeout time.Duration, log *zap.Logger) *ClaudeCLI {
	if command == "" {
		command = "claude"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ClaudeCLI{
		Command: findBinary(command),
		Args:    []string{"-p"},
		Timeout: timeout,
		log:     logging.OrNop(log),
	}
}

// findBinary checks PATH, then ~/.local/bin where the installer puts it.
func findBinary(name string) string {
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		return name
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".local", "bin", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return name
}

func (c *ClaudeCLI) Generate(ctx context.Context, prompt string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = strings.NewReader(prompt)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := logging.OrNop(c.log)
	start := time.Now()
	err := cmd.Run()
	log.Debug("reasoner finished",
		zap.String("command", c.Command),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Duration("took", time.Since(start)),
		zap.Error(err))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s not found: install it or set reasoner.command: %w", c.Command, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s failed: exit code %d, stderr: %s",
				c.Command, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%s failed: %w", c.Command, err)
	}
	return stdout.String(), nil
}

// Func adapts a plain function to Reasoner.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
