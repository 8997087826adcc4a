package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var (
	// CommandContext allows overriding the command creation for testing
	CommandContext = exec.CommandContext
	// LookPath allows overriding the lookup behavior for testing
	LookPath = exec.LookPath
	// LookupEnv allows overriding environment lookups for testing
	LookupEnv = os.LookupEnv
)

// ResolveSecretReference resolves a secret reference in a configured value.
// Two forms are recognized: a 1Password reference (op://vault/item/field),
// read with the op CLI, and env:NAME, read from the environment.
// Returns the resolved value and whether it was a secret reference.
func ResolveSecretReference(ctx context.Context, value string) (string, bool, error) {
	switch {
	case strings.HasPrefix(value, "op://"):
		resolved, err := readOnePassword(ctx, value)
		return resolved, true, err
	case strings.HasPrefix(value, "env:"):
		name := strings.TrimPrefix(value, "env:")
		if name == "" {
			return "", true, errors.New("empty environment variable name in secret reference")
		}
		resolved, ok := LookupEnv(name)
		if !ok {
			return "", true, fmt.Errorf("environment variable %s is not set", name)
		}
		return resolved, true, nil
	default:
		return value, false, nil
	}
}

func readOnePassword(ctx context.Context, ref string) (string, error) {
	if _, err := LookPath("op"); err != nil {
		return "", fmt.Errorf("1Password CLI (op) not found in PATH: %w", err)
	}

	cmd := CommandContext(ctx, "op", "read", ref)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to read secret from 1Password: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("failed to read secret from 1Password: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}
