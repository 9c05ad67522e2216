package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReadText reads a whole file as a string.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteText replaces the contents of path, creating parent directories as needed.
func WriteText(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// OSFiles reads and writes files on the local filesystem.
type OSFiles struct{}

// Read returns the contents of path.
func (OSFiles) Read(path string) (string, error) {
	return ReadText(path)
}

// Write replaces the contents of path.
func (OSFiles) Write(path, content string) error {
	return WriteText(path, content)
}

// Exists reports whether path exists.
func (OSFiles) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
