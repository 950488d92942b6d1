package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs an external command and returns its stdout. Adapters that
// shell out take one so tests can replace the binary.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Exec runs name with exec.CommandContext, folding stderr into the error.
func Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s failed: exit code %d, stderr: %s",
				name, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}
