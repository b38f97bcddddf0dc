package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string
	BaseURL    string

	DB struct {
		DSN string
	}

	Log struct {
		Level  string
		Format string
	}

	// DefaultTimezone is what the "automatic" timezone setting resolves to.
	DefaultTimezone string
	DefaultsFile    string
	// Defaults holds instance-wide settings defaults keyed by setting name.
	Defaults map[string]string

	PrometheusEnabled bool
	TrustedProxies    []string

	// Warnings collects non-fatal problems for the caller to log.
	Warnings []string
}

// defaultsFile is the layout of APP_DEFAULTS_FILE.
type defaultsFile struct {
	Settings map[string]string `yaml:"settings"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		dsn, err := dsnFromParts()
		if err != nil {
			return nil, err
		}
		cfg.DB.DSN = dsn
	}

	cfg.Log.Level = getenvDefault("APP_LOG_LEVEL", "info")
	cfg.Log.Format = getenvDefault("APP_LOG_FORMAT", "json")
	cfg.DefaultTimezone = getenvDefault("APP_DEFAULT_TIMEZONE", "UTC")
	cfg.DefaultsFile = os.Getenv("APP_DEFAULTS_FILE")
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	switch cfg.Log.Format {
	case "json", "console":
	default:
		return nil, fmt.Errorf("APP_LOG_FORMAT must be json or console, got %q", cfg.Log.Format)
	}
	for _, proxy := range cfg.TrustedProxies {
		if !validProxy(proxy) {
			return nil, fmt.Errorf("APP_TRUSTED_PROXIES: %q is neither an address nor a CIDR", proxy)
		}
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("APP_DEFAULT_TIMEZONE %q: %w", cfg.DefaultTimezone, err)
	}
	if cfg.DefaultsFile != "" {
		defaults, err := loadDefaults(cfg.DefaultsFile)
		if err != nil {
			return nil, err
		}
		cfg.Defaults = defaults
	}

	if len(cfg.TrustedProxies) == 0 {
		cfg.Warnings = append(cfg.Warnings, "no APP_TRUSTED_PROXIES configured; all proxies are trusted, which is not recommended for public environments")
	}

	return cfg, nil
}

// dsnFromParts assembles a DSN from the APP_DB_* variables, escaping the
// credentials.
func dsnFromParts() (string, error) {
	host := os.Getenv("APP_DB_HOST")
	name := os.Getenv("APP_DB_NAME")
	user := os.Getenv("APP_DB_USER")
	password := os.Getenv("APP_DB_PASSWORD")

	var missing []string
	for key, v := range map[string]string{"APP_DB_HOST": host, "APP_DB_NAME": name, "APP_DB_USER": user, "APP_DB_PASSWORD": password} {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 4 {
		return "", errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("incomplete database settings, missing %s", strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, getenvDefault("APP_DB_PORT", "5432")),
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": {getenvDefault("APP_DB_SSLMODE", "disable")}}.Encode(),
	}
	return u.String(), nil
}

func validProxy(v string) bool {
	if _, err := netip.ParsePrefix(v); err == nil {
		return true
	}
	_, err := netip.ParseAddr(v)
	return err == nil
}

func loadDefaults(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults file: %w", err)
	}
	var file defaultsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse defaults file %s: %w", path, err)
	}
	return file.Settings, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
