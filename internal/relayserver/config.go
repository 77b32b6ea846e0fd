package relayserver

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the relay server's environment-driven configuration.
type Config struct {
	ListenAddr  string
	DatabaseURL string
	RedisURL    string
	BlobDir     string
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetDefault("LISTEN_ADDR", ":8484")
	v.SetDefault("BLOB_DIR", "./blobs")
	v.AutomaticEnv()

	cfg := Config{
		ListenAddr:  v.GetString("LISTEN_ADDR"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		RedisURL:    v.GetString("REDIS_URL"),
		BlobDir:     v.GetString("BLOB_DIR"),
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL is required")
	}
	return cfg, nil
}
