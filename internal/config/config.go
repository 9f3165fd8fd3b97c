package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	MediaDir               string
	MaxScanSizeMB          int
	ScanItemCount          int
	EventChannelBase       string
	UploadRateLimit        int
	UploadRateWindow       time.Duration
	SeedEnabled            bool
	SeedToken              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("OPTIMARK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "OptiMark API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("media.dir", "media")
	v.SetDefault("scan.max_size_mb", 10)
	v.SetDefault("scan.item_count", 100)
	v.SetDefault("events.channel_base", "optimark")
	v.SetDefault("upload.rate_limit", 30)
	v.SetDefault("upload.rate_window", "1m")
	v.SetDefault("cloudinary.folder", "optimark/scans")

	windowString := v.GetString("upload.rate_window")
	if windowString == "" {
		windowString = "1m"
	}

	window, err := time.ParseDuration(windowString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid upload rate window: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		MediaDir:               v.GetString("media.dir"),
		MaxScanSizeMB:          v.GetInt("scan.max_size_mb"),
		ScanItemCount:          v.GetInt("scan.item_count"),
		EventChannelBase:       v.GetString("events.channel_base"),
		UploadRateLimit:        v.GetInt("upload.rate_limit"),
		UploadRateWindow:       window,
		SeedEnabled:            v.GetBool("seed.enabled"),
		SeedToken:              v.GetString("seed.token"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MaxScanSizeMB <= 0 {
		cfg.MaxScanSizeMB = 10
	}

	if cfg.ScanItemCount <= 0 {
		cfg.ScanItemCount = 100
	}

	return cfg, nil
}
