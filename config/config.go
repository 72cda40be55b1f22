package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	HTTP struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log LogConfig `yaml:"log"`
	ML  struct {
		ArtifactDir       string `yaml:"artifact_dir"`
		CacheSize         int    `yaml:"cache_size"`
		WatchArtifacts    bool   `yaml:"watch_artifacts"`
		RecordPredictions bool   `yaml:"record_predictions"`
	} `yaml:"ml"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = 8080
	cfg.HTTP.Timeout = 30 * time.Second
	cfg.HTTP.AllowedOrigins = []string{"*"}
	cfg.HTTP.MaxBodyBytes = 1 << 20
	cfg.Database.Path = "agridash.db"
	cfg.Log = LogConfig{
		Level:      "info",
		Encoding:   "json",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
	cfg.ML.ArtifactDir = "artifacts"
	cfg.ML.CacheSize = 1024
	cfg.ML.WatchArtifacts = true
	cfg.ML.RecordPredictions = true
	return cfg
}

// Load reads path over the defaults, then applies .env and AGRIDASH_*
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		payload, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(payload, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("AGRIDASH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGRIDASH_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv("AGRIDASH_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("AGRIDASH_ARTIFACT_DIR"); v != "" {
		c.ML.ArtifactDir = v
	}
	if v := os.Getenv("AGRIDASH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("AGRIDASH_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("AGRIDASH_ALLOWED_ORIGINS"); v != "" {
		c.HTTP.AllowedOrigins = strings.Split(v, ",")
	}
	return nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.New("http.max_body_bytes must be positive")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.ML.ArtifactDir == "" {
		return errors.New("ml.artifact_dir is required")
	}
	if c.ML.CacheSize < 0 {
		return errors.New("ml.cache_size must not be negative")
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("log.encoding %q must be json or console", c.Log.Encoding)
	}
	return nil
}
