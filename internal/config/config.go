package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "MANGA_WEB_"
	defaultConfigFile = "config.yaml"
	defaultPort       = "8080"
	defaultCartKey    = "manga_cart_v1"
)

// Storage drivers accepted by StorageConfig.Driver.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server       ServerConfig    `koanf:"server"`
	Env          string          `koanf:"env"`
	Dev          bool            `koanf:"dev"`
	LogLevel     string          `koanf:"log_level"`
	TemplatesDir string          `koanf:"templates_dir"`
	PublicDir    string          `koanf:"public_dir"`
	LocalesDir   string          `koanf:"locales_dir"`
	CatalogFile  string          `koanf:"catalog_file"`
	DefaultLang  string          `koanf:"default_lang"`
	Session      SessionConfig   `koanf:"session"`
	Cart         CartConfig      `koanf:"cart"`
	Storage      StorageConfig   `koanf:"storage"`
	Analytics    AnalyticsConfig `koanf:"analytics"`
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	SigningKey string `koanf:"signing_key"`
}

// CartConfig names the persisted cart key and the cross-tab fan-out delay.
type CartConfig struct {
	Key            string        `koanf:"key"`
	ChangeCoalesce time.Duration `koanf:"change_coalesce"`
}

// StorageConfig selects the key/value backend that persists carts.
type StorageConfig struct {
	Driver        string `koanf:"driver"`
	SQLitePath    string `koanf:"sqlite_path"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// AnalyticsConfig holds client instrumentation identifiers surfaced to templates.
type AnalyticsConfig struct {
	GA4 string `koanf:"ga4"`
	GTM string `koanf:"gtm"`
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Default returns the configuration used when neither file nor environment override a value.
func Default() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	return &Config{
		Server: ServerConfig{
			Addr:         ":" + port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Env:          "local",
		LogLevel:     "info",
		TemplatesDir: "templates",
		PublicDir:    "public",
		LocalesDir:   "locales",
		CatalogFile:  "data/products.yaml",
		DefaultLang:  "ru",
		Cart: CartConfig{
			Key:            defaultCartKey,
			ChangeCoalesce: 80 * time.Millisecond,
		},
		Storage: StorageConfig{
			Driver:     DriverMemory,
			SQLitePath: "manga-web.db",
			RedisAddr:  "localhost:6379",
		},
	}
}

// Path returns the config file location, honouring MANGA_WEB_CONFIG.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(envPrefix + "CONFIG")); p != "" {
		return p
	}
	return defaultConfigFile
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (MANGA_WEB_*). Nested keys use a double
// underscore: MANGA_WEB_STORAGE__DRIVER -> storage.driver.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DefaultLang = strings.ToLower(strings.TrimSpace(c.DefaultLang))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Cart.Key = strings.TrimSpace(c.Cart.Key)
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	var fields []string
	if strings.TrimSpace(c.Server.Addr) == "" {
		fields = append(fields, "server.addr")
	}
	if c.Cart.Key == "" || strings.ContainsAny(c.Cart.Key, " \t\n") {
		fields = append(fields, "cart.key")
	}
	if c.Cart.ChangeCoalesce < 0 {
		fields = append(fields, "cart.change_coalesce")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			fields = append(fields, "storage.sqlite_path")
		}
	case DriverRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			fields = append(fields, "storage.redis_addr")
		}
	default:
		fields = append(fields, "storage.driver")
	}
	if c.DefaultLang != "ru" && c.DefaultLang != "en" {
		fields = append(fields, "default_lang")
	}
	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

// Prod reports whether the service runs in production (cookies are marked Secure).
func (c *Config) Prod() bool { return c.Env == "prod" }
