package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseDotenv reads a .env file into a map. Blank lines and lines starting
// with '#' are skipped; everything else splits on the first '='. Lines
// without one are ignored. An `export ` prefix is accepted, values may be
// single- or double-quoted, and empty values are kept.
func ParseDotenv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		env[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return env, nil
}

// unquote strips one level of matching single or double quotes.
func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}

// FindUpwards walks from start toward the filesystem root looking for name,
// checking start itself first. The nearest match wins.
func FindUpwards(start, name string) (string, bool) {
	dir := filepath.Clean(start)
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadDotenv finds the nearest .env upward from startDir and applies it to
// the process environment. Variables already set in the environment win.
// Returns the number of variables applied; no .env anywhere is not an error.
func LoadDotenv(startDir string) (int, error) {
	path, ok := FindUpwards(startDir, ".env")
	if !ok {
		return 0, nil
	}
	env, err := ParseDotenv(path)
	if err != nil {
		return 0, err
	}

	applied := 0
	for key, value := range env {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return applied, fmt.Errorf("set %s: %w", key, err)
		}
		applied++
	}
	return applied, nil
}
