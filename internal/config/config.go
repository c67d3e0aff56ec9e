package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is the configuration directory under $HOME.
	DefaultConfigDir = ".tymon"
	// DefaultConfigFile is the configuration filename.
	DefaultConfigFile = "config.toml"
	// EnvPrefix prefixes environment overrides, e.g. TYMON_SERVER_PORT.
	EnvPrefix = "TYMON"
)

// Config holds all tymon configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Memory   MemoryConfig   `mapstructure:"memory"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // empty = store.DefaultDBPath()
}

type LLMConfig struct {
	Provider      string `mapstructure:"provider"` // "anthropic", "openai", "ollama", "none"
	Model         string `mapstructure:"model"`
	MaxTokens     int    `mapstructure:"max_tokens"`
	AnthropicKey  string `mapstructure:"anthropic_key"`
	OpenAIKey     string `mapstructure:"openai_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	OllamaURL     string `mapstructure:"ollama_url"`
	OllamaModel   string `mapstructure:"ollama_model"` // e.g. "llama3.2"
}

// MemoryConfig tunes the memory lifecycle.
type MemoryConfig struct {
	MaxMemoriesPerUser       int  `mapstructure:"max_memories_per_user"`
	MaxRelevancePool         int  `mapstructure:"max_relevance_pool"`
	RelevantLimit            int  `mapstructure:"relevant_limit"`
	ExtractionTimeoutSeconds int  `mapstructure:"extraction_timeout_seconds"`
	HistoryTurns             int  `mapstructure:"history_turns"`
	ReflectAfterChat         bool `mapstructure:"reflect_after_chat"` // write an AI journal entry per chat turn
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 8000,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-haiku-4-5",
			MaxTokens:   2048,
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llama3.2",
		},
		Memory: MemoryConfig{
			MaxMemoriesPerUser:       500,
			MaxRelevancePool:         25,
			RelevantLimit:            5,
			ExtractionTimeoutSeconds: 60,
			HistoryTurns:             10,
			ReflectAfterChat:         true,
		},
	}
}

// DefaultPath returns ~/.tymon/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Load reads configuration from path, or ~/.tymon/config.toml when path is
// empty. A missing default file is not an error; a missing explicit file is.
// A .env file in the working directory is loaded first, then TYMON_* variables
// and the provider API key variables override file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		def, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(def)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyKeyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults mirrors Default() into viper so AutomaticEnv can see every key.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.anthropic_key", "")
	v.SetDefault("llm.openai_key", "")
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.ollama_url", d.LLM.OllamaURL)
	v.SetDefault("llm.ollama_model", d.LLM.OllamaModel)

	v.SetDefault("memory.max_memories_per_user", d.Memory.MaxMemoriesPerUser)
	v.SetDefault("memory.max_relevance_pool", d.Memory.MaxRelevancePool)
	v.SetDefault("memory.relevant_limit", d.Memory.RelevantLimit)
	v.SetDefault("memory.extraction_timeout_seconds", d.Memory.ExtractionTimeoutSeconds)
	v.SetDefault("memory.history_turns", d.Memory.HistoryTurns)
	v.SetDefault("memory.reflect_after_chat", d.Memory.ReflectAfterChat)
}

// applyKeyEnv lets the providers' conventional variables supply API keys.
func applyKeyEnv(cfg *Config) {
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.LLM.AnthropicKey = k
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.LLM.OpenAIKey = k
	}
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "anthropic", "openai", "ollama", "none", "":
	default:
		return fmt.Errorf("llm.provider must be one of anthropic, openai, ollama, none; got %q", cfg.LLM.Provider)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	m := cfg.Memory
	if m.MaxMemoriesPerUser < 1 {
		return fmt.Errorf("memory.max_memories_per_user must be at least 1, got %d", m.MaxMemoriesPerUser)
	}
	if m.MaxRelevancePool < 1 {
		return fmt.Errorf("memory.max_relevance_pool must be at least 1, got %d", m.MaxRelevancePool)
	}
	if m.RelevantLimit < 1 {
		return fmt.Errorf("memory.relevant_limit must be at least 1, got %d", m.RelevantLimit)
	}
	if m.ExtractionTimeoutSeconds < 1 {
		return fmt.Errorf("memory.extraction_timeout_seconds must be at least 1, got %d", m.ExtractionTimeoutSeconds)
	}
	if m.HistoryTurns < 0 {
		return fmt.Errorf("memory.history_turns must not be negative, got %d", m.HistoryTurns)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
