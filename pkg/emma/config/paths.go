package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName  = "emma"
	defaultConfigFile     = "config.yaml"
	defaultCredentialFile = "credentials.json"
)

func DefaultConfigPath() string {
	if env := os.Getenv("EMMA_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(configDir(), defaultConfigFile)
}

func DefaultCredentialPath() string {
	return filepath.Join(configDir(), defaultCredentialFile)
}

func configDir() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".emma")
}
