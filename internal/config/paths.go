package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDataDir creates the agent's persisted-state root and returns it.
func EnsureDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	return dataDir, nil
}

// IdentitySubdir is where the identity store persists the secret, device
// id, and verification tag files.
func IdentitySubdir(dataDir string) string {
	return filepath.Join(dataDir, "identity")
}

// OutputSubdir is the Output File Collector's scratch directory.
func OutputSubdir(dataDir string) string {
	return filepath.Join(dataDir, "output")
}

// TasksDBPath is the sqlite file backing the Tasks ADI service.
func TasksDBPath(dataDir string) string {
	return filepath.Join(dataDir, "tasks.db")
}
