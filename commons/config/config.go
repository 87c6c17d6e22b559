package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"
)

// Config holds all service configuration, loaded once at process start
// and immutable thereafter
type Config struct {
	App    AppConfig
	Immich ImmichConfig
	Cache  CacheConfig
}

type AppConfig struct {
	Host  string
	Port  int
	Debug bool
}

type ImmichConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond int
}

type CacheConfig struct {
	DataDir  string
	ThumbTTL time.Duration // <= 0 means thumbnails never expire
	MetaTTL  time.Duration // <= 0 means metadata never expires
	EntryCap int
}

// Load reads configuration from a .env file (if present) and the environment
func Load() (*Config, error) {
	// missing .env is fine, plain environment variables still apply
	godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_HOST", "0.0.0.0")
	v.SetDefault("APP_PORT", 5000)
	v.SetDefault("APP_DEBUG", false)
	v.SetDefault("IMMICH_BASE_URL", "")
	v.SetDefault("IMMICH_API_KEY", "")
	v.SetDefault("IMMICH_TIMEOUT_SECONDS", 30)
	v.SetDefault("IMMICH_REQUESTS_PER_SECOND", 10)
	v.SetDefault("IMMICH_DATA_DIR", "data")
	v.SetDefault("IMMICH_THUMB_TTL_SECONDS", 0) // never expire
	v.SetDefault("IMMICH_META_TTL_SECONDS", 300)
	v.SetDefault("IMMICH_CACHE_ENTRY_CAP", 100000)

	return &Config{
		App: AppConfig{
			Host:  v.GetString("APP_HOST"),
			Port:  v.GetInt("APP_PORT"),
			Debug: v.GetBool("APP_DEBUG"),
		},
		Immich: ImmichConfig{
			BaseURL:           v.GetString("IMMICH_BASE_URL"),
			APIKey:            v.GetString("IMMICH_API_KEY"),
			Timeout:           time.Duration(v.GetInt("IMMICH_TIMEOUT_SECONDS")) * time.Second,
			RequestsPerSecond: v.GetInt("IMMICH_REQUESTS_PER_SECOND"),
		},
		Cache: CacheConfig{
			DataDir:  v.GetString("IMMICH_DATA_DIR"),
			ThumbTTL: time.Duration(v.GetInt("IMMICH_THUMB_TTL_SECONDS")) * time.Second,
			MetaTTL:  time.Duration(v.GetInt("IMMICH_META_TTL_SECONDS")) * time.Second,
			EntryCap: v.GetInt("IMMICH_CACHE_ENTRY_CAP"),
		},
	}, nil
}

// Validate checks the settings a running server cannot do without
func (config *Config) Validate() error {
	if config.Immich.BaseURL == "" || config.Immich.APIKey == "" {
		return xerrors.Errorf("IMMICH_BASE_URL and IMMICH_API_KEY must be set")
	}
	if config.Cache.EntryCap <= 0 {
		return xerrors.Errorf("IMMICH_CACHE_ENTRY_CAP must be positive")
	}
	return nil
}
