// Package config loads settings from defaults, an optional config file,
// WA_ARCHIVE_* environment variables and command line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	AppName   = "whatsapp-archive"
	EnvPrefix = "WA_ARCHIVE"
)

// Keys understood by the loader.
const (
	KeyMessagesDB    = "messages_db"
	KeyAccountDB     = "account_db"
	KeyBridgeURL     = "bridge_url"
	KeyLogLevel      = "log_level"
	KeyRedisAddr     = "redis_addr"
	KeyRedisPassword = "redis_password"
	KeyRedisDB       = "redis_db"
	KeyCacheTTL      = "cache_ttl"
	KeyListenAddr    = "listen_addr"
	KeyTimeout       = "timeout"
)

// Config is the resolved configuration.
type Config struct {
	MessagesDB    string
	AccountDB     string
	BridgeURL     string
	LogLevel      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	ListenAddr    string
	Timeout       time.Duration

	// File is the config file that was read, if any.
	File string
}

// Dir returns the config directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/whatsapp-archive.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// StoreDir returns the default directory holding both databases.
func StoreDir() string {
	return filepath.Join(Dir(), "store")
}

// New returns a viper instance with defaults, config file search paths and
// environment bindings in place. Flags are bound by the caller.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(Dir())
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyMessagesDB, filepath.Join(StoreDir(), "messages.db"))
	v.SetDefault(KeyAccountDB, filepath.Join(StoreDir(), "whatsapp.db"))
	v.SetDefault(KeyBridgeURL, "http://localhost:8080/api")
	v.SetDefault(KeyLogLevel, "error")
	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyRedisPassword, "")
	v.SetDefault(KeyRedisDB, 0)
	v.SetDefault(KeyCacheTTL, 10*time.Minute)
	v.SetDefault(KeyListenAddr, "127.0.0.1:8090")
	v.SetDefault(KeyTimeout, 30*time.Second)

	return v
}

// Load reads the optional config file and returns the validated config.
// A config file set explicitly with SetConfigFile must exist.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		MessagesDB:    expandHome(v.GetString(KeyMessagesDB)),
		AccountDB:     expandHome(v.GetString(KeyAccountDB)),
		BridgeURL:     v.GetString(KeyBridgeURL),
		LogLevel:      v.GetString(KeyLogLevel),
		RedisAddr:     v.GetString(KeyRedisAddr),
		RedisPassword: v.GetString(KeyRedisPassword),
		RedisDB:       v.GetInt(KeyRedisDB),
		CacheTTL:      v.GetDuration(KeyCacheTTL),
		ListenAddr:    v.GetString(KeyListenAddr),
		Timeout:       v.GetDuration(KeyTimeout),
		File:          v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the tool cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.MessagesDB) == "" {
		errs = append(errs, errors.New("messages_db must not be empty"))
	}
	if strings.TrimSpace(c.AccountDB) == "" {
		errs = append(errs, errors.New("account_db must not be empty"))
	}
	if u, err := url.Parse(c.BridgeURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("bridge_url %q must be an http(s) URL", c.BridgeURL))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// CacheEnabled reports whether a Redis name cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

func expandHome(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return p
}
