package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
)

// password returns the secrets password from TESTGEN_PASSWORD or an
// interactive prompt. confirm asks twice, for creating a new secrets file.
func (a *app) password(confirm bool) (string, error) {
	if pw := os.Getenv(config.EnvPassword); pw != "" {
		return pw, nil
	}

	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		first, err := a.readPassword("Secrets password: ")
		if err != nil {
			return "", err
		}
		if first == "" {
			return "", fmt.Errorf("password is empty")
		}
		if !confirm {
			return first, nil
		}
		second, err := a.readPassword("Confirm password: ")
		if err != nil {
			return "", err
		}
		if first == second {
			return first, nil
		}
		fmt.Fprintln(os.Stderr, "Passwords do not match. Please try again.")
	}
	return "", fmt.Errorf("passwords do not match after %d attempts", maxAttempts)
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("secrets are encrypted; set %s or run in a terminal", config.EnvPassword)
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := string(pw)
	for i := range pw {
		pw[i] = 0
	}
	return password, nil
}
