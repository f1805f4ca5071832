// Package xdg resolves the XDG Base Directory locations authkeep reads its
// config file from and writes generated certificates to.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName        = "authkeep"
	configFileName = "config.yaml"
	certsDirName   = "certs"
)

// ConfigDir returns $XDG_CONFIG_HOME/authkeep, defaulting the base to
// ~/.config.
func ConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// ConfigFile returns the config file loaded when none is given explicitly.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// DataDir returns $XDG_DATA_HOME/authkeep, defaulting the base to
// ~/.local/share.
func DataDir() (string, error) {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

// CertsDir returns the directory for generated TLS certificates.
func CertsDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, certsDirName), nil
}

func appDir(envVar string, homeRelative ...string) (string, error) {
	base := os.Getenv(envVar)
	if base == "" {
		home, err := homeDir()
		if err != nil {
			return "", oops.With("env", envVar).Wrap(err)
		}
		base = filepath.Join(append([]string{home}, homeRelative...)...)
	}
	return filepath.Join(base, appName), nil
}

func homeDir() (string, error) {
	if home := os.Getenv("HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.Code("XDG_NO_HOME").Wrap(err)
	}
	return home, nil
}
