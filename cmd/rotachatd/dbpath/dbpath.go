// Package dbpath resolves the on-disk SQLite database used by the server
// commands when no explicit DSN is configured.
package dbpath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("ROTACHAT_SQLITE")); envPath != "" {
		return envPath, nil
	}
	if envPath := strings.TrimSpace(os.Getenv("ROTACHAT_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find rotachat SQLite database; pass --storage-dsn")
}

func sqliteCandidates() []string {
	candidates := []string{
		"rotachat.db",
		"rotachat.sqlite",
		filepath.Join(".rotachat", "rotachat.db"),
		filepath.Join(".rotachat", "rotachat.sqlite"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{
			filepath.Join(home, ".rotachat", "rotachat.db"),
			filepath.Join(home, ".rotachat", "rotachat.sqlite"),
		}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "rotachat", "rotachat.db"),
			filepath.Join(xdgHome, "rotachat", "rotachat.sqlite"),
		}, candidates...)
	}

	return candidates
}
