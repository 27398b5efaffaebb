// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"iotdetect/detection"
	"iotdetect/flow"
	"iotdetect/monitoring"
)

type Config struct {
	Http struct {
		Port         int           `yaml:"port"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Model struct {
		Mode           string `yaml:"mode"`
		DetectorPath   string `yaml:"detector_path"`
		ClassifierPath string `yaml:"classifier_path"`
		FallbackPolicy string `yaml:"fallback_policy"`
		CacheSize      int    `yaml:"cache_size"`
		Watch          bool   `yaml:"watch"`
	} `yaml:"model"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	UI struct {
		Title     string `yaml:"title"`
		ImagePath string `yaml:"image_path"`
	} `yaml:"ui"`
	Alerts struct {
		Channels   []monitoring.AlertChannel `yaml:"channels"`
		MaxPerHour int                       `yaml:"max_per_hour"`
		Cooldown   time.Duration             `yaml:"cooldown"`
	} `yaml:"alerts"`
}

// Default returns the configuration used for any key the file leaves out.
func Default() *Config {
	cfg := &Config{}
	cfg.Http.Port = 8501
	cfg.Http.Timeout = 30 * time.Second
	cfg.Http.MaxBodyBytes = 1 << 20
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 50
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28
	cfg.Model.Mode = detection.ModeTwoStage
	cfg.Model.DetectorPath = "models/iot_traffic_attack_detector.json.gz"
	cfg.Model.ClassifierPath = "models/iot_traffic_attack_classifier.json.gz"
	cfg.Model.FallbackPolicy = "unknown"
	cfg.Model.CacheSize = 1024
	cfg.UI.Title = "IoT Cyberattack Detection"
	cfg.Alerts.MaxPerHour = 30
	cfg.Alerts.Cooldown = time.Minute
	return cfg
}

// Load reads path over the defaults. Relative file paths in the config are
// resolved against the directory holding the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find returns path if it exists, otherwise the same name one directory up,
// so the binary works when started from cmd/.
func Find(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) && !filepath.IsAbs(path) {
		parent := filepath.Join("..", path)
		if _, err := os.Stat(parent); err == nil {
			return parent
		}
	}
	return path
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{
		&c.Log.File,
		&c.Model.DetectorPath,
		&c.Model.ClassifierPath,
		&c.Database.Path,
		&c.UI.ImagePath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.Http.Port))
	}
	if c.Http.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	switch c.Model.Mode {
	case detection.ModeTwoStage:
		if c.Model.DetectorPath == "" {
			errs = append(errs, errors.New("model.detector_path is required in two_stage mode"))
		}
	case detection.ModeSingleStage:
	default:
		errs = append(errs, fmt.Errorf("model.mode %q must be %s or %s", c.Model.Mode, detection.ModeTwoStage, detection.ModeSingleStage))
	}
	if c.Model.ClassifierPath == "" {
		errs = append(errs, errors.New("model.classifier_path is required"))
	}
	if _, err := flow.ParseFallbackPolicy(c.Model.FallbackPolicy); err != nil {
		errs = append(errs, fmt.Errorf("model.fallback_policy: %w", err))
	}
	if c.Model.CacheSize < 0 {
		errs = append(errs, errors.New("model.cache_size must not be negative"))
	}
	for i, ch := range c.Alerts.Channels {
		if ch.URL == "" {
			errs = append(errs, fmt.Errorf("alerts.channels[%d].url is required", i))
		}
	}
	return errors.Join(errs...)
}

// Policy returns the parsed fallback policy. Validate has already checked it.
func (c *Config) Policy() flow.FallbackPolicy {
	p, _ := flow.ParseFallbackPolicy(c.Model.FallbackPolicy)
	return p
}
