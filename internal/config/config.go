// Package config provides the configuration schema and loaders for the
// Cadenza server.
//
// MusicKit credentials always come from the environment (TEAM_ID, KEY_ID,
// PRIVATE_KEY_PATH, STOREFRONT — all required, no defaults). Server
// settings such as the log level and the observability listen address may
// additionally be loaded from a YAML file using [Load] or [LoadFromReader].
package config

// LogLevel controls log verbosity for the Cadenza server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Cadenza.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	MusicKit MusicKitConfig `yaml:"-"`
}

// ServerConfig holds logging and observability settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Defaults to "info" when empty.
	LogLevel LogLevel `yaml:"log_level"`

	// HTTPAddr is the optional TCP address for the health and metrics
	// listener (e.g. "127.0.0.1:9446"). When empty no HTTP listener is
	// started; the MCP transport is stdio either way.
	HTTPAddr string `yaml:"http_addr"`

	// CatalogBaseURL overrides the Apple Music API endpoint. Leave empty
	// to use the production catalog host.
	CatalogBaseURL string `yaml:"catalog_base_url"`

	// OsascriptPath overrides the path to the osascript binary used by the
	// local player bridge. Leave empty to resolve it from PATH.
	OsascriptPath string `yaml:"osascript_path"`
}

// MusicKitConfig holds the credentials for minting Apple Music developer
// tokens and addressing the regional catalog. All four fields are required;
// [FromEnv] reports every missing one by name before any signing or
// network activity takes place.
type MusicKitConfig struct {
	// TeamID is the Apple developer team identifier (token issuer).
	TeamID string

	// KeyID is the MusicKit signing-key identifier placed in the token
	// header.
	KeyID string

	// PrivateKeyPath points at the PEM-encoded P-256 private key (.p8).
	PrivateKeyPath string

	// Storefront is the regional catalog partition (e.g. "us", "de").
	Storefront string
}
