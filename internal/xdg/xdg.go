// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

// Package xdg resolves XDG Base Directory paths for PixelVault.
package xdg

import (
	"os"
	"path/filepath"
)

const (
	appName        = "pixelvault"
	configFileName = "config.yaml"
)

// ConfigDir returns the XDG config directory for pixelvault.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile(getenv func(string) string) string {
	return filepath.Join(ConfigDir(getenv), configFileName)
}

// CertsDir returns the directory for generated TLS certificates.
func CertsDir(getenv func(string) string) string {
	return filepath.Join(ConfigDir(getenv), "certs")
}

// FindConfigFile returns the default config file path if a regular file
// exists there.
func FindConfigFile(getenv func(string) string) (string, bool) {
	path := ConfigFile(getenv)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}
