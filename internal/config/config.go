package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	TargetDefault = "default"
	TargetDev     = "dev"
)

// Config holds all configuration for the gateway
type Config struct {
	// Server Configuration
	Server ServerConfig

	// Proxy Configuration
	Proxy ProxyConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Listen      string   `validate:"required"`
	StaticDir   string   `validate:"required"`
	CORSOrigins []string `validate:"dive,url"`
}

// ProxyConfig holds backend forwarding configuration
type ProxyConfig struct {
	Target       string `validate:"oneof=dev default"`
	APITarget    string `validate:"required,url"`
	APITargetDev string `validate:"required,url"`
	GoAPITarget  string `validate:"required,url"`

	// File is an optional YAML document overriding the built-in rules
	File string

	// Targets is populated from File when set
	Targets map[string][]RuleConfig `validate:"dive,dive"`
}

// RuleConfig is one forwarding rule as written in the proxy file
type RuleConfig struct {
	Prefix       string `yaml:"prefix" validate:"required,startswith=/"`
	Target       string `yaml:"target" validate:"required,url"`
	StripPrefix  bool   `yaml:"strip_prefix"`
	ChangeOrigin bool   `yaml:"change_origin"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

type proxyFile struct {
	Targets map[string][]RuleConfig `yaml:"targets"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := &Config{
		Server: ServerConfig{
			Listen:      getenv("WEBGATE_LISTEN", ":5173"),
			StaticDir:   getenv("WEBGATE_STATIC_DIR", "dist"),
			CORSOrigins: splitList(getenv("WEBGATE_CORS_ORIGINS", "http://localhost:5173")),
		},
		Proxy: ProxyConfig{
			Target:       strings.ToLower(getenv("WEBGATE_PROXY_TARGET", TargetDefault)),
			APITarget:    getenv("WEBGATE_API_TARGET", "http://localhost:15273"),
			APITargetDev: getenv("WEBGATE_API_TARGET_DEV", "http://localhost:15272"),
			GoAPITarget:  getenv("WEBGATE_GO_API_TARGET", "http://localhost:9092"),
			File:         os.Getenv("WEBGATE_PROXY_CONFIG"),
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Proxy.File != "" {
		targets, err := LoadProxyFile(cfg.Proxy.File)
		if err != nil {
			return nil, err
		}
		cfg.Proxy.Targets = targets
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadProxyFile reads forwarding rules per target profile from a YAML file
func LoadProxyFile(path string) (map[string][]RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy config file: %w", err)
	}

	var pf proxyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse proxy config file: %w", err)
	}

	for name := range pf.Targets {
		if name != TargetDev && name != TargetDefault {
			return nil, fmt.Errorf("unknown proxy target %q in %s", name, path)
		}
	}

	return pf.Targets, nil
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// APIOrigin returns the API backend origin for the selected target profile
func (p ProxyConfig) APIOrigin() string {
	if p.Target == TargetDev {
		return p.APITargetDev
	}
	return p.APITarget
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
