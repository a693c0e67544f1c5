// Package config loads application settings from config.yaml with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	UploadDir  string `yaml:"upload_dir"`
	ExportDir  string `yaml:"export_dir"`
	DataDir    string `yaml:"data_dir"`
	DBPath     string `yaml:"db_path"`

	// ExportFormat is "csv" or "xlsx".
	ExportFormat string `yaml:"export_format"`

	// RecognitionThreshold is the column-overlap ratio needed to recognize
	// a carrier by layout; 1.0 means exact fingerprint matches only.
	RecognitionThreshold float64 `yaml:"recognition_threshold"`

	MaxUploadMB int `yaml:"max_upload_mb"`
}

// Load reads configPath if it exists, applies env overrides, then defaults.
// A missing file is fine; a malformed one is not.
func Load(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		configPath = "config.yaml"
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.UploadDir, "UPLOAD_DIR")
	envOverride(&cfg.ExportDir, "EXPORT_DIR")
	envOverride(&cfg.DataDir, "DATA_DIR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ExportFormat, "EXPORT_FORMAT")
	envOverrideFloat(&cfg.RecognitionThreshold, "RECOGNITION_THRESHOLD")
	envOverrideInt(&cfg.MaxUploadMB, "MAX_UPLOAD_MB")

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "./exports"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./data/carriers.db"
	}
	if cfg.ExportFormat == "" {
		cfg.ExportFormat = "csv"
	}
	if cfg.RecognitionThreshold == 0 {
		cfg.RecognitionThreshold = 0.80
	}
	if cfg.MaxUploadMB == 0 {
		cfg.MaxUploadMB = 32
	}

	return cfg, nil
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envOverrideInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envOverrideFloat(target *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}
