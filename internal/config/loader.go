package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/cadenza/internal/toolerr"
)

// Environment variable names for the MusicKit credentials.
const (
	EnvTeamID         = "TEAM_ID"
	EnvKeyID          = "KEY_ID"
	EnvPrivateKeyPath = "PRIVATE_KEY_PATH"
	EnvStorefront     = "STOREFRONT"
)

// Load reads the YAML configuration file at path, merges the MusicKit
// credentials from the environment, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, merges the environment, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	mk, err := FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.MusicKit = *mk

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the MusicKit credentials from the environment. Every
// missing variable is named in the returned classified error so that a
// misconfigured deployment can be fixed in one round trip.
func FromEnv() (*MusicKitConfig, error) {
	mk := &MusicKitConfig{
		TeamID:         os.Getenv(EnvTeamID),
		KeyID:          os.Getenv(EnvKeyID),
		PrivateKeyPath: os.Getenv(EnvPrivateKeyPath),
		Storefront:     os.Getenv(EnvStorefront),
	}

	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{EnvTeamID, mk.TeamID},
		{EnvKeyID, mk.KeyID},
		{EnvPrivateKeyPath, mk.PrivateKeyPath},
		{EnvStorefront, mk.Storefront},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}

	if len(missing) > 0 {
		return nil, toolerr.New(
			toolerr.CodeMissingConfiguration,
			"MusicKit credentials are not fully configured.",
			"Define "+strings.Join(missing, ", ")+" in the environment.",
		)
	}
	return mk, nil
}

// Validate checks that cfg contains a coherent set of values.
func Validate(cfg *Config) error {
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		return fmt.Errorf("config: server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}
	return nil
}
