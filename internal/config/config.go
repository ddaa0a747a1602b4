package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration for tally, stored in ~/.tally/config.json.
// The file supports single-line // comments for documentation purposes.
type Config struct {
	// WeekdayHours is the booking target per weekday, Monday first.
	WeekdayHours []float64      `json:"weekday_hours"`
	Storage      StorageConfig  `json:"storage"`
	Moco         MocoConfig     `json:"moco"`
	Jira         JiraConfig     `json:"jira"`
	Outlook      OutlookConfig  `json:"outlook"`
	Personio     PersonioConfig `json:"personio"`
	Server       ServerConfig   `json:"server"`
}

// StorageConfig selects where the month cache and absences are persisted.
type StorageConfig struct {
	// Backend is "file" (one JSON file per key) or "sqlite".
	Backend string `json:"backend"`
	// Path is the data directory (file) or database file (sqlite). Empty = default.
	Path string `json:"path"`
}

// MocoConfig holds the billing system credentials.
type MocoConfig struct {
	// Domain is the account subdomain, e.g. "acme" for acme.mocoapp.com.
	Domain string `json:"domain"`
	APIKey string `json:"api_key"`
}

// Connected reports whether credentials are present.
func (c MocoConfig) Connected() bool { return c.Domain != "" && c.APIKey != "" }

// JiraConfig holds the issue tracker credentials.
type JiraConfig struct {
	BaseURL  string `json:"base_url"`
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
}

// Connected reports whether credentials are present.
func (c JiraConfig) Connected() bool { return c.BaseURL != "" && c.Email != "" && c.APIToken != "" }

// OutlookConfig holds Microsoft Graph / Outlook calendar settings.
type OutlookConfig struct {
	// Enabled turns the calendar source on. It requires `tally outlook login`.
	Enabled bool `json:"enabled"`
	// TenantID is the Azure AD tenant. Use "common" for personal/multi-tenant accounts.
	TenantID string `json:"tenant_id"`
	// ClientID is the Azure app (client) ID for the OAuth2 device code flow.
	ClientID string `json:"client_id"`
	// Timezone is the IANA timezone for event times (e.g. "Europe/Berlin"). Empty = UTC.
	Timezone string `json:"timezone"`
	// The Show* switches reveal events that are hidden by default.
	ShowDeclined  bool `json:"show_declined"`
	ShowFree      bool `json:"show_free"`
	ShowCancelled bool `json:"show_cancelled"`
	ShowPrivate   bool `json:"show_private"`
}

// PersonioConfig holds the HR system API credentials.
type PersonioConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	PersonID     string `json:"person_id"`
}

// Connected reports whether credentials are present.
func (c PersonioConfig) Connected() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.PersonID != ""
}

// ServerConfig configures `tally serve`.
type ServerConfig struct {
	ListenAddr string `json:"listen_addr"`
	// RefreshInterval re-fetches the live day and its month: "off", "5m", "30m" or "1h".
	RefreshInterval string `json:"refresh_interval"`
}

// refreshIntervals are the accepted values of server.refresh_interval.
var refreshIntervals = map[string]time.Duration{
	"off": 0,
	"5m":  5 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
}

// RefreshEvery returns the auto refresh period, or 0 when it is off.
func (c ServerConfig) RefreshEvery() time.Duration {
	return refreshIntervals[c.RefreshInterval]
}

const (
	// DefaultTenantID is the Microsoft "common" tenant (supports personal and
	// multi-tenant organisational accounts without additional registration).
	DefaultTenantID = "common"
	// DefaultClientID is the well-known public Azure CLI app ID.
	// It supports device code flow without a client secret and requires no
	// app registration. Replace with your own registered app ID for
	// organisational or production deployments.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"
	// DefaultListenAddr is where `tally serve` listens.
	DefaultListenAddr = "127.0.0.1:8723"
	// DefaultBackend is the storage backend used when none is configured.
	DefaultBackend = "file"
)

// DefaultWeekdayHours is an eight-hour Monday to Friday.
var DefaultWeekdayHours = []float64{8, 8, 8, 8, 8, 0, 0}

// Default returns a Config pre-filled with sensible defaults.
func Default() Config {
	return Config{
		WeekdayHours: append([]float64(nil), DefaultWeekdayHours...),
		Storage:      StorageConfig{Backend: DefaultBackend},
		Outlook: OutlookConfig{
			TenantID: DefaultTenantID,
			ClientID: DefaultClientID,
		},
		Server: ServerConfig{ListenAddr: DefaultListenAddr, RefreshInterval: "off"},
	}
}

// Weekdays returns the weekday table as a fixed array. Missing slots are 0.
func (c Config) Weekdays() [7]float64 {
	var out [7]float64
	copy(out[:], c.WeekdayHours)
	return out
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// tally configuration – ~/.tally/config.json
//
// A source without credentials counts as "not connected" and is skipped.
{
  // Booking target in hours per weekday, Monday first.
  "weekday_hours": [8, 8, 8, 8, 8, 0, 0],

  // ── Persistence of the month cache and manual absences ───────────────────
  "storage": {
    // "file" keeps one JSON file per key, "sqlite" a single database.
    "backend": "file",
    // Leave empty for ~/.tally/data (file) or ~/.tally/tally.db (sqlite).
    "path": ""
  },

  // ── Billing (Moco) ───────────────────────────────────────────────────────
  "moco": {
    // Account subdomain: "acme" for https://acme.mocoapp.com
    "domain": "",
    // Personal API key from your Moco profile.
    "api_key": ""
  },

  // ── Issue tracker (Jira Cloud) ───────────────────────────────────────────
  "jira": {
    "base_url": "",
    "email": "",
    "api_token": ""
  },

  // ── Calendar (Microsoft Graph / Outlook) ─────────────────────────────────
  "outlook": {
    // Set to true after running: tally outlook login
    "enabled": false,
    // Azure AD tenant ID.
    // • "common"  – personal Microsoft accounts and any organisation (default)
    // • Your organisation's tenant GUID, e.g. "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx"
    "tenant_id": "common",
    // The built-in value is the public Azure CLI app – no app registration needed.
    "client_id": "04b07795-8542-4c4a-95af-30b2c573d5ab",
    // IANA timezone for calendar times, e.g. "Europe/Berlin". Empty = UTC.
    "timezone": "",
    "show_declined": false,
    "show_free": false,
    "show_cancelled": false,
    "show_private": false
  },

  // ── HR absences (Personio API v2 client credentials) ─────────────────────
  "personio": {
    "client_id": "",
    "client_secret": "",
    "person_id": ""
  },

  // ── tally serve ──────────────────────────────────────────────────────────
  "server": {
    "listen_addr": "127.0.0.1:8723",
    // Re-fetch the live day and its month in the background: "off", "5m", "30m" or "1h".
    "refresh_interval": "off"
  }
}
`

// FilePath returns the path to ~/.tally/config.json.
func FilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".tally", "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads ~/.tally/config.json, creating it with annotated defaults on
// first run.
func Load() (Config, error) {
	path, err := FilePath()
	if err != nil {
		return Default(), err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file is created from the
// annotated template and yields the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a commented config document. Zero-value fields are filled
// with the built-in defaults so callers always get a usable Config even if
// the user only partially fills in the file.
func Parse(data []byte, name string) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", name, err)
	}

	def := Default()
	if len(cfg.WeekdayHours) == 0 {
		cfg.WeekdayHours = def.WeekdayHours
	}
	if len(cfg.WeekdayHours) != 7 {
		return def, fmt.Errorf("config %s: weekday_hours needs 7 values (Monday to Sunday), got %d", name, len(cfg.WeekdayHours))
	}
	for i, h := range cfg.WeekdayHours {
		if h < 0 || h > 24 {
			return def, fmt.Errorf("config %s: weekday_hours[%d] = %v is outside 0..24", name, i, h)
		}
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.Outlook.TenantID == "" {
		cfg.Outlook.TenantID = DefaultTenantID
	}
	if cfg.Outlook.ClientID == "" {
		cfg.Outlook.ClientID = DefaultClientID
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.RefreshInterval == "" {
		cfg.Server.RefreshInterval = def.Server.RefreshInterval
	}
	if _, ok := refreshIntervals[cfg.Server.RefreshInterval]; !ok {
		return def, fmt.Errorf("config %s: server.refresh_interval %q must be one of off, 5m, 30m, 1h", name, cfg.Server.RefreshInterval)
	}
	return cfg, nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
