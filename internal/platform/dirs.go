package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// StateDirFor computes where lock and recording files live. The layout
// follows XDG when XDG_STATE_HOME is set and falls back to a dotfile
// directory in the user's home otherwise.
func StateDirFor(homeDir, xdgStateHome string) (string, error) {
	if homeDir == "" && xdgStateHome == "" {
		return "", errors.New("home directory is empty")
	}

	if xdgStateHome != "" {
		return filepath.Join(xdgStateHome, "voicetype"), nil
	}

	return filepath.Join(homeDir, ".voicetype"), nil
}

func ResolveStateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	return StateDirFor(homeDir, os.Getenv("XDG_STATE_HOME"))
}

func ConfigDirFor(homeDir, xdgConfigHome string) (string, error) {
	if homeDir == "" && xdgConfigHome == "" {
		return "", errors.New("home directory is empty")
	}

	if xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "voicetype"), nil
	}

	return filepath.Join(homeDir, ".config", "voicetype"), nil
}

func ResolveConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	return ConfigDirFor(homeDir, os.Getenv("XDG_CONFIG_HOME"))
}
