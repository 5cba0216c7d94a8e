package commands

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// readSecret returns value when set, then the envVar value, and otherwise
// prompts on the terminal without echo. label names the secret in the prompt
// and in errors; flag is the flag that would have supplied it.
func readSecret(env *Env, value, envVar, label, flag string) (string, error) {
	if value != "" {
		return value, nil
	}
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	name := strings.ToLower(label)

	// Check if stdin is a terminal (not piped)
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("%s is required in non-interactive mode (use --%s flag or %s env var)", name, flag, envVar)
	}

	env.printf("%s: ", label)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	env.printf("\n") // New line after password input
	return string(secret), nil
}
