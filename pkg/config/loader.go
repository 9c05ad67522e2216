package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConfigFileNames are searched in order by LoadFromDir, first in the project
// directory and then in its .testgen directory.
//
//nolint:gochecknoglobals // Intentional global for search order
var ConfigFileNames = []string{"testgen.yaml", "testgen.yml", "testgen.toml"}

// Load reads a config file, applies defaults, and validates the result.
// The format is chosen by file extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys in TOML config %s: %v", path, undecoded)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir loads the first config file found in projectDir. When no file
// exists the defaults are returned.
func LoadFromDir(projectDir string) (*Config, string, error) {
	if path := FindConfigFile(projectDir); path != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}
	return Default(), "", nil
}

// FindConfigFile returns the path of the first config file in projectDir, or "".
func FindConfigFile(projectDir string) string {
	for _, dir := range []string{projectDir, filepath.Join(projectDir, ProjectConfigDir)} {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if fileExists(path) {
				return path
			}
		}
	}
	return ""
}

// ResolvePath makes path absolute relative to projectDir.
func ResolvePath(projectDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}
