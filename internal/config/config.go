// Package config loads the application configuration from YAML with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// OllamaConfig configures the local inference server connection.
type OllamaConfig struct {
	BaseURL        string `yaml:"baseURL"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	Stream         bool   `yaml:"stream"`
}

// RedisConfig configures the Redis connection used for OTP challenges and
// login throttling.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// SMTPConfig configures outbound mail. Leave host empty to disable mail.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// BackupConfig configures optional artifact mirroring to object storage.
type BackupConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	DataDir         string       `yaml:"dataDir"`
	LogLevel        string       `yaml:"logLevel"`
	SessionTTLHours int          `yaml:"sessionTTLHours"`
	Ollama          OllamaConfig `yaml:"ollama"`
	Redis           RedisConfig  `yaml:"redis"`
	SMTP            SMTPConfig   `yaml:"smtp"`
	Backup          BackupConfig `yaml:"backup"`
}

// Load reads config from path (defaults to config.yaml). A missing file is
// not an error; defaults and environment overrides still apply.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("NEUROCHAT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("NEUROCHAT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Ollama.Model = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("OLLAMA_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ollama.TimeoutSeconds = n
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = home + string(os.PathSeparator) + ".neurochat"
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SessionTTLHours <= 0 {
		cfg.SessionTTLHours = 30 * 24
	}
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = "http://127.0.0.1:11434"
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = "mistral:7b"
	}
	if cfg.Ollama.TimeoutSeconds <= 0 {
		cfg.Ollama.TimeoutSeconds = 120
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.SMTP.Port <= 0 {
		cfg.SMTP.Port = 587
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.DataDir == "" {
		return errors.New("config: dataDir is required (set in config.yaml or NEUROCHAT_DATA_DIR)")
	}
	if cfg.Ollama.Model == "" {
		return errors.New("config: ollama.model is required (set in config.yaml)")
	}
	if cfg.Backup.Enabled {
		if cfg.Backup.Endpoint == "" || cfg.Backup.Bucket == "" {
			return errors.New("config: backup requires endpoint and bucket when enabled")
		}
	}
	return nil
}
