package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vidfetch/internal/format"
	"vidfetch/pkg/models"
)

// EnvPrefix prefixes every environment override, e.g. VIDFETCH_SERVER_PORT
const EnvPrefix = "VIDFETCH"

var (
	ErrInvalidPort        = errors.New("invalid port: must be between 0 and 65535")
	ErrInvalidDuration    = errors.New("invalid duration: must be positive")
	ErrMissingDownloadDir = errors.New("download directory must not be empty")
	ErrInvalidCacheSize   = errors.New("invalid cache size: must be non-negative")
	ErrInvalidRateLimit   = errors.New("invalid rate limit: must be non-negative")
)

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"port":         "server.port",
	"host":         "server.host",
	"static-dir":   "server.staticDir",
	"download-dir": "downloads.dir",
	"ytdlp":        "engine.path",
	"log-level":    "log.level",
}

// Manager holds the loaded configuration
type Manager struct {
	mu     sync.RWMutex
	config *models.Config
	v      *viper.Viper
}

// NewManager loads configuration from defaults, the optional file at
// configPath, VIDFETCH_* environment variables and flags, in increasing
// precedence. An explicit configPath must exist.
func NewManager(configPath string, flags *pflag.FlagSet) (*Manager, error) {
	v := viper.New()
	setDefaults(v, models.DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		v.SetConfigName("vidfetch") // supports vidfetch.{yaml|yml|json|toml}
		v.AddConfigPath(".")
		v.AddConfigPath(GetDataDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Manager{config: &cfg, v: v}, nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *models.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := *m.config
	return &cfg
}

// ConfigFile returns the file the configuration was read from, if any
func (m *Manager) ConfigFile() string {
	return m.v.ConfigFileUsed()
}

func setDefaults(v *viper.Viper, d *models.Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.staticDir", d.Server.StaticDir)
	v.SetDefault("server.requestTimeout", d.Server.RequestTimeout)
	v.SetDefault("server.rateLimit", d.Server.RateLimit)
	v.SetDefault("server.rateBurst", d.Server.RateBurst)

	v.SetDefault("downloads.dir", d.Downloads.Dir)
	v.SetDefault("downloads.maxAge", d.Downloads.MaxAge)
	v.SetDefault("downloads.sweepInterval", d.Downloads.SweepInterval)
	v.SetDefault("downloads.maxConcurrent", d.Downloads.MaxConcurrent)

	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.maxEntries", d.Cache.MaxEntries)
	v.SetDefault("cache.redisAddr", d.Cache.RedisAddr)
	v.SetDefault("cache.redisPassword", d.Cache.RedisPassword)
	v.SetDefault("cache.redisDB", d.Cache.RedisDB)

	v.SetDefault("engine.path", d.Engine.Path)
	v.SetDefault("engine.toolsDir", d.Engine.ToolsDir)
	v.SetDefault("engine.autoInstall", d.Engine.AutoInstall)
	v.SetDefault("engine.probeTimeout", d.Engine.ProbeTimeout)
	v.SetDefault("engine.downloadTimeout", d.Engine.DownloadTimeout)
	v.SetDefault("engine.tierPolicy", d.Engine.TierPolicy)

	v.SetDefault("log.level", d.Log.Level)
}

// Validate checks if the configuration is valid
func Validate(cfg *models.Config) error {
	// port 0 picks a free port
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return ErrInvalidPort
	}

	if strings.TrimSpace(cfg.Downloads.Dir) == "" {
		return ErrMissingDownloadDir
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{"downloads.maxAge", cfg.Downloads.MaxAge},
		{"cache.ttl", cfg.Cache.TTL},
		{"engine.probeTimeout", cfg.Engine.ProbeTimeout},
		{"engine.downloadTimeout", cfg.Engine.DownloadTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s: %w", d.key, ErrInvalidDuration)
		}
	}

	if cfg.Cache.MaxEntries < 0 {
		return ErrInvalidCacheSize
	}

	if cfg.Server.RateLimit < 0 || cfg.Server.RateBurst < 0 {
		return ErrInvalidRateLimit
	}

	if _, err := format.ParsePolicy(cfg.Engine.TierPolicy); err != nil {
		return fmt.Errorf("engine.tierPolicy %q: %w", cfg.Engine.TierPolicy, err)
	}

	return nil
}

// GetDataDir returns the application data directory
func GetDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "vidfetch")
	}

	// Fallback to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".vidfetch")
	}

	// Last resort: current directory
	return "."
}

// GetToolsDir returns where the engine binary is installed
func GetToolsDir(cfg *models.Config) string {
	if cfg.Engine.ToolsDir != "" {
		return cfg.Engine.ToolsDir
	}
	return filepath.Join(GetDataDir(), "tools")
}
