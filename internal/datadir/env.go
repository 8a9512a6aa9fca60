package datadir

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvFileEnvVar names a single .env file to load instead of the defaults.
const EnvFileEnvVar = "CLAWLINK_ENV_FILE"

// LoadEnv loads KEY=VALUE .env files so that CLAWDBOT_GATEWAY_URL and
// CLAWDBOT_GATEWAY_TOKEN can live next to the data directory.
// Existing environment variables are never overridden and the first file
// that sets a key wins.
//
// Search order:
//  1. CLAWLINK_ENV_FILE (if set, only that file is loaded)
//  2. {dataRoot}/.env
//  3. .env in the working directory
func LoadEnv(dataRoot string) error {
	seen := make(map[string]bool)
	for _, p := range envPaths(dataRoot) {
		if err := loadEnvFile(p, seen); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func envPaths(dataRoot string) []string {
	if override := os.Getenv(EnvFileEnvVar); override != "" {
		return []string{override}
	}

	var paths []string
	if dataRoot != "" {
		paths = append(paths, filepath.Join(dataRoot, ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, ".env")
		if len(paths) == 0 || filepath.Clean(paths[0]) != filepath.Clean(p) {
			paths = append(paths, p)
		}
	}
	return paths
}

// loadEnvFile reads one file; a missing file is not an error.
func loadEnvFile(path string, seen map[string]bool) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

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
		value = unquote(strings.TrimSpace(value))

		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}
