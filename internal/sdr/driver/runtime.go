package driver

import (
	"errors"
	"fmt"
	"os/exec"
)

// FindRuntime locates an external SDR tool in PATH. A missing binary is
// reported as ErrDriverUnavailable.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: `%s` not found in PATH", ErrDriverUnavailable, runtime)
		}
		return "", fmt.Errorf("failed to locate `%s`: %w", runtime, err)
	}

	return binPath, nil
}
