package models

import "time"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Downloads DownloadsConfig `mapstructure:"downloads" json:"downloads"`
	Cache     CacheConfig     `mapstructure:"cache" json:"cache"`
	Engine    EngineConfig    `mapstructure:"engine" json:"engine"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host           string        `mapstructure:"host" json:"host"`
	Port           int           `mapstructure:"port" json:"port"`
	StaticDir      string        `mapstructure:"staticDir" json:"staticDir"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout" json:"requestTimeout"`
	RateLimit      float64       `mapstructure:"rateLimit" json:"rateLimit"`
	RateBurst      int           `mapstructure:"rateBurst" json:"rateBurst"`
}

// DownloadsConfig configures the download directory and its retention
type DownloadsConfig struct {
	Dir           string        `mapstructure:"dir" json:"dir"`
	MaxAge        time.Duration `mapstructure:"maxAge" json:"maxAge"`
	SweepInterval time.Duration `mapstructure:"sweepInterval" json:"sweepInterval"`
	MaxConcurrent int           `mapstructure:"maxConcurrent" json:"maxConcurrent"`
}

// CacheConfig configures the metadata cache
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl" json:"ttl"`
	MaxEntries    int           `mapstructure:"maxEntries" json:"maxEntries"`
	RedisAddr     string        `mapstructure:"redisAddr" json:"redisAddr"`
	RedisPassword string        `mapstructure:"redisPassword" json:"redisPassword"`
	RedisDB       int           `mapstructure:"redisDB" json:"redisDB"`
}

// EngineConfig configures the yt-dlp engine
type EngineConfig struct {
	Path            string        `mapstructure:"path" json:"path"`
	ToolsDir        string        `mapstructure:"toolsDir" json:"toolsDir"`
	AutoInstall     bool          `mapstructure:"autoInstall" json:"autoInstall"`
	ProbeTimeout    time.Duration `mapstructure:"probeTimeout" json:"probeTimeout"`
	DownloadTimeout time.Duration `mapstructure:"downloadTimeout" json:"downloadTimeout"`
	TierPolicy      string        `mapstructure:"tierPolicy" json:"tierPolicy"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			StaticDir:      "",
			RequestTimeout: 10 * time.Minute,
			RateLimit:      10,
			RateBurst:      20,
		},
		Downloads: DownloadsConfig{
			Dir:           "downloads",
			MaxAge:        time.Hour,
			SweepInterval: 10 * time.Minute,
			MaxConcurrent: 4,
		},
		Cache: CacheConfig{
			TTL:        30 * time.Minute,
			MaxEntries: 1000,
		},
		Engine: EngineConfig{
			Path:            "yt-dlp",
			ToolsDir:        "",
			AutoInstall:     false,
			ProbeTimeout:    60 * time.Second,
			DownloadTimeout: 30 * time.Minute,
			TierPolicy:      "first",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
