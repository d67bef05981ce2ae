// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package xdg provides XDG Base Directory paths for Keygate.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "keygate"

// ConfigDir returns the XDG config directory for keygate.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the conventional config file path,
// ConfigDir()/keygate.yaml. The file may or may not exist.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "keygate.yaml")
}
