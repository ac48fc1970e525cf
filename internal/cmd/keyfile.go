package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"inkpad/internal/configpaths"
	"inkpad/internal/server/ctl/auth"
)

// readKeyFile returns the stored control API password, or "" when no key
// file exists.
func readKeyFile() string {
	path, err := configpaths.KeyFilePath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// loadOrCreateKey returns the control API password, generating and storing
// a fresh one on first run.
func loadOrCreateKey(logger *slog.Logger) (string, error) {
	if pwd := readKeyFile(); pwd != "" {
		return pwd, nil
	}

	path, err := configpaths.KeyFilePath()
	if err != nil {
		return "", fmt.Errorf("resolve key file path: %w", err)
	}
	pwd, err := auth.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate control API password: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create key file dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(pwd), 0o600); err != nil {
		return "", fmt.Errorf("write key file: %w", err)
	}
	logger.Info("generated control API password", "path", path)
	logger.Info("-------------------------------------")
	logger.Info("Your inkpad control API password is:")
	logger.Info(pwd)
	logger.Info("-------------------------------------")
	logger.Info("Edit the key file to change it.")
	return pwd, nil
}
