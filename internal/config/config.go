package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".dataloom"

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	GeminiAPIKey    string  `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	OpenAIBaseURL   string  `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Correction loop and sandbox
	MaxRetries          int    `mapstructure:"max_retries" yaml:"max_retries"`
	OutputDir           string `mapstructure:"output_dir" yaml:"output_dir"`
	ExecTimeoutSec      int    `mapstructure:"exec_timeout_sec" yaml:"exec_timeout_sec"`
	RequestTimeoutSec   int    `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	RepairErrorMaxChars int    `mapstructure:"repair_error_max_chars" yaml:"repair_error_max_chars"`

	// History and server
	HistoryPath    string `mapstructure:"history_path" yaml:"history_path"`
	HistoryEnabled bool   `mapstructure:"history_enabled" yaml:"history_enabled"`
	ServerAddr     string `mapstructure:"server_addr" yaml:"server_addr"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dataloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// keys without a default still need an explicit env binding for Unmarshal.
var envOnlyKeys = []string{"api_key", "gemini_api_key"}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DATALOOM")
	v.AutomaticEnv()
	for _, k := range envOnlyKeys {
		_ = v.BindEnv(k)
	}

	// Defaults
	v.SetDefault("default_model", "mistral:7b")
	v.SetDefault("default_provider", "ollama")
	v.SetDefault("openai_base_url", "http://localhost:11434/v1")
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("temperature", 0.1)
	v.SetDefault("max_retries", 5)
	v.SetDefault("output_dir", "output_plots")
	v.SetDefault("exec_timeout_sec", 30)
	v.SetDefault("request_timeout_sec", 120)
	v.SetDefault("repair_error_max_chars", 4000)
	v.SetDefault("history_path", "")
	v.SetDefault("history_enabled", true)
	v.SetDefault("server_addr", "127.0.0.1:8088")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 120)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve history_path default: ~/.dataloom/history.db
	if c.HistoryPath == "" {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		c.HistoryPath = filepath.Join(dir, "history.db")
	}
	return &c, nil
}

// Keys lists the settable configuration keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set parses val and assigns it to key.
func (c *Global) Set(key, val string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	return set(c, strings.TrimSpace(val))
}

type setter func(c *Global, val string) error

func str(dst func(*Global) *string) setter {
	return func(c *Global, val string) error { *dst(c) = val; return nil }
}

func integer(key string, lowest int, dst func(*Global) *int) setter {
	return func(c *Global, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil || i < lowest {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*dst(c) = i
		return nil
	}
}

var setters = map[string]setter{
	"api_key":         str(func(c *Global) *string { return &c.APIKey }),
	"gemini_api_key":  str(func(c *Global) *string { return &c.GeminiAPIKey }),
	"default_model":   str(func(c *Global) *string { return &c.DefaultModel }),
	"openai_base_url": str(func(c *Global) *string { return &c.OpenAIBaseURL }),
	"output_dir":      str(func(c *Global) *string { return &c.OutputDir }),
	"history_path":    str(func(c *Global) *string { return &c.HistoryPath }),
	"server_addr":     str(func(c *Global) *string { return &c.ServerAddr }),
	"ollama_host":     str(func(c *Global) *string { return &c.OllamaHost }),
	"default_provider": func(c *Global, val string) error {
		switch strings.ToLower(val) {
		case "openrouter":
			c.DefaultProvider = "openrouter"
		case "openai", "openai-compatible":
			c.DefaultProvider = "openai"
		case "gemini", "google":
			c.DefaultProvider = "gemini"
		case "ollama", "local":
			c.DefaultProvider = "ollama"
		default:
			return fmt.Errorf("invalid default_provider: %s (use ollama, openai, openrouter or gemini)", val)
		}
		return nil
	},
	"temperature": func(c *Global, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for temperature: %v", val)
		}
		c.Temperature = f
		return nil
	},
	"history_enabled": func(c *Global, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for history_enabled: %v", val)
		}
		c.HistoryEnabled = b
		return nil
	},
	"log_level": func(c *Global, val string) error {
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
			return nil
		}
		return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
	},
	"log_format": func(c *Global, val string) error {
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
			return nil
		}
		return fmt.Errorf("invalid log_format: %s (use console or json)", val)
	},
	"max_tokens":             integer("max_tokens", 1, func(c *Global) *int { return &c.MaxTokens }),
	"max_retries":            integer("max_retries", 1, func(c *Global) *int { return &c.MaxRetries }),
	"exec_timeout_sec":       integer("exec_timeout_sec", 1, func(c *Global) *int { return &c.ExecTimeoutSec }),
	"request_timeout_sec":    integer("request_timeout_sec", 1, func(c *Global) *int { return &c.RequestTimeoutSec }),
	"repair_error_max_chars": integer("repair_error_max_chars", 1, func(c *Global) *int { return &c.RepairErrorMaxChars }),
	"http_timeout_sec":       integer("http_timeout_sec", 1, func(c *Global) *int { return &c.HTTPTimeoutSec }),
	"retry_max_attempts":     integer("retry_max_attempts", 0, func(c *Global) *int { return &c.RetryMaxAttempts }),
	"retry_base_delay_ms":    integer("retry_base_delay_ms", 0, func(c *Global) *int { return &c.RetryBaseDelayMs }),
	"retry_max_delay_ms":     integer("retry_max_delay_ms", 0, func(c *Global) *int { return &c.RetryMaxDelayMs }),
	"ollama_timeout_sec":     integer("ollama_timeout_sec", 1, func(c *Global) *int { return &c.OllamaTimeoutSec }),
}
