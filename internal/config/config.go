package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ButyrinIA/socials/internal/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Postgres PostgresConfig `yaml:"postgres"`
	Permit   PermitConfig   `yaml:"permit"`
	Log      logger.Config  `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// DevTokens включает POST /token для локальной разработки
	DevTokens bool `yaml:"dev_tokens"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type PermitConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Resource string        `yaml:"resource"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Load читает YAML-файл, подставляя переменные окружения вида ${VAR}
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(raw))))
}

// Parse разбирает конфигурацию и заполняет значения по умолчанию
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Permit.Resource == "" {
		c.Permit.Resource = "SocialsDashboard"
	}
	if c.Permit.Timeout == 0 {
		c.Permit.Timeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Permit.BaseURL == "" {
		errs = append(errs, errors.New("permit.base_url is required"))
	}
	return errors.Join(errs...)
}
