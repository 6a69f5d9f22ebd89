package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for elog, stored in ~/.elog/config.json.
// The file supports single-line // comments for documentation purposes.
// Every key can be overridden from the environment, e.g. ELOG_API_BASE_URL.
type Config struct {
	API     APIConfig
	Export  ExportConfig
	Display DisplayConfig
	Cache   CacheConfig
	Log     LogConfig
	Mock    MockConfig
}

// APIConfig locates the entry-logging backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ExportConfig tunes the bulk export.
type ExportConfig struct {
	// PreferredLimit is the page size asked for on the first request.
	PreferredLimit int
	// PageLimit is the page size for every later request. It should match the
	// backend's maximum page size.
	PageLimit        int
	PageDelay        time.Duration
	RateLimitBackoff time.Duration
	Format           string
	OutputDir        string
}

// DisplayConfig controls how timestamps are rendered.
type DisplayConfig struct {
	// Timezone is an IANA zone name. Empty means the host's local zone.
	Timezone string
}

// CacheConfig selects the list-page cache backend.
type CacheConfig struct {
	Backend   string
	TTL       time.Duration
	RedisAddr string
}

// LogConfig controls diagnostic output on stderr.
type LogConfig struct {
	Level  string
	Format string
}

// MockConfig configures the local fake backend.
type MockConfig struct {
	Addr            string
	RateLimitPerMin int
	MaxLimit        int
	JWTSigningKey   string
	Envelope        string
	AdminUser       string
	AdminPassword   string
}

const envPrefix = "ELOG"

var defaults = map[string]any{
	"api.base_url":              "http://localhost:5000/api",
	"api.timeout":               "10s",
	"export.preferred_limit":    10000,
	"export.page_limit":         200,
	"export.page_delay":         "250ms",
	"export.rate_limit_backoff": "1500ms",
	"export.format":             "csv",
	"export.output_dir":         ".",
	"display.timezone":          "",
	"cache.backend":             "none",
	"cache.ttl":                 "30s",
	"cache.redis_addr":          "localhost:6379",
	"log.level":                 "info",
	"log.format":                "text",
	"mock.addr":                 ":5000",
	"mock.rate_limit_per_min":   120,
	"mock.max_limit":            200,
	"mock.jwt_signing_key":      "dev-signing-secret-change",
	"mock.envelope":             "data",
	"mock.admin_user":           "admin",
	"mock.admin_password":       "admin",
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// elog configuration – ~/.elog/config.json
//
// All settings are optional; the defaults below target a backend running
// on localhost. Any key can be overridden from the environment using the
// ELOG_ prefix, e.g. ELOG_API_BASE_URL or ELOG_EXPORT_PAGE_LIMIT.
{
  // ── Backend ───────────────────────────────────────────────────────────────
  "api": {
    // Base URL of the entry-logging REST API.
    "base_url": "http://localhost:5000/api",
    // Per-request timeout.
    "timeout": "10s"
  },

  // ── Bulk export ───────────────────────────────────────────────────────────
  "export": {
    // Page size requested first; a single page is enough when the backend honours it.
    "preferred_limit": 10000,
    // Page size for the remaining pages. Keep this equal to the backend's maximum.
    "page_limit": 200,
    // Pause between page requests.
    "page_delay": "250ms",
    // Wait before the single retry of a rate-limited page.
    "rate_limit_backoff": "1500ms",
    // csv, xlsx or json. Can be overridden with: elog export --format <fmt>
    "format": "csv",
    // Directory export files are written to.
    "output_dir": "."
  },

  // ── Display ───────────────────────────────────────────────────────────────
  "display": {
    // IANA timezone for logDate/logTime, e.g. "Asia/Manila". Empty = local zone.
    "timezone": ""
  },

  // ── List cache ────────────────────────────────────────────────────────────
  "cache": {
    // none, memory or redis
    "backend": "none",
    "ttl": "30s",
    "redis_addr": "localhost:6379"
  },

  // ── Logging ───────────────────────────────────────────────────────────────
  "log": {
    // debug, info, warn or error
    "level": "info",
    // text or json
    "format": "text"
  },

  // ── Fake backend (elog serve-mock) ────────────────────────────────────────
  "mock": {
    "addr": ":5000",
    "rate_limit_per_min": 120,
    "max_limit": 200,
    "jwt_signing_key": "dev-signing-secret-change",
    // Response shape: data, entries or bare
    "envelope": "data",
    // Credentials accepted by POST /api/auth/login
    "admin_user": "admin",
    "admin_password": "admin"
  }
}
`

// DefaultPath returns the path to ~/.elog/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".elog", "config.json"), nil
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

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// Load reads the config file at path (DefaultPath when empty), creating it
// with annotated defaults on first run. Missing keys fall back to defaults and
// ELOG_* environment variables override the file.
func Load(path string) (Config, error) {
	v := newViper()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return fromViper(v), err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return fromViper(v), nil
	}
	if err != nil {
		return fromViper(v), fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := v.ReadConfig(bytes.NewReader(stripLineComments(data))); err != nil {
		return fromViper(newViper()), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.base_url"), "/"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Export: ExportConfig{
			PreferredLimit:   positive(v.GetInt("export.preferred_limit"), 10000),
			PageLimit:        positive(v.GetInt("export.page_limit"), 200),
			PageDelay:        v.GetDuration("export.page_delay"),
			RateLimitBackoff: v.GetDuration("export.rate_limit_backoff"),
			Format:           strings.ToLower(v.GetString("export.format")),
			OutputDir:        v.GetString("export.output_dir"),
		},
		Display: DisplayConfig{
			Timezone: v.GetString("display.timezone"),
		},
		Cache: CacheConfig{
			Backend:   strings.ToLower(v.GetString("cache.backend")),
			TTL:       v.GetDuration("cache.ttl"),
			RedisAddr: v.GetString("cache.redis_addr"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Mock: MockConfig{
			Addr:            v.GetString("mock.addr"),
			RateLimitPerMin: positive(v.GetInt("mock.rate_limit_per_min"), 120),
			MaxLimit:        positive(v.GetInt("mock.max_limit"), 200),
			JWTSigningKey:   v.GetString("mock.jwt_signing_key"),
			Envelope:        v.GetString("mock.envelope"),
			AdminUser:       v.GetString("mock.admin_user"),
			AdminPassword:   v.GetString("mock.admin_password"),
		},
	}
}

func positive(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
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
