// Package config handles inkwell configuration: a YAML file with
// environment-variable overrides under the INKWELL_ prefix.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all inkwell configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	LLM    LLMConfig    `mapstructure:"llm" yaml:"llm"`
	Agent  AgentConfig  `mapstructure:"agent" yaml:"agent"`
	Memory MemoryConfig `mapstructure:"memory" yaml:"memory"`
	Tools  ToolsConfig  `mapstructure:"tools" yaml:"tools"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// ServerConfig configures the HTTP/WebSocket server.
type ServerConfig struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	TurnTimeout time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout"`
}

// LLMConfig configures the model-completion client.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AgentConfig configures the turn loop.
type AgentConfig struct {
	SystemPromptPath string `mapstructure:"system_prompt_path" yaml:"system_prompt_path"`
	MaxToolRounds    int    `mapstructure:"max_tool_rounds" yaml:"max_tool_rounds"`
}

// MemoryConfig configures context-window compaction.
type MemoryConfig struct {
	MaxMessages     int `mapstructure:"max_messages" yaml:"max_messages"`
	ItemMaxChars    int `mapstructure:"item_max_chars" yaml:"item_max_chars"`
	SummaryMaxChars int `mapstructure:"summary_max_chars" yaml:"summary_max_chars"`
}

// ToolsConfig points at the tool manifest.
type ToolsConfig struct {
	ManifestPath string `mapstructure:"manifest_path" yaml:"manifest_path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			TurnTimeout: 120 * time.Second,
		},
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Agent: AgentConfig{
			MaxToolRounds: 5,
		},
		Memory: MemoryConfig{
			MaxMessages:     40,
			ItemMaxChars:    200,
			SummaryMaxChars: 2000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Dir returns the configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".inkwell"), nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from the given file (or the default search path
// when empty), layering INKWELL_ environment variables on top. A missing
// config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("INKWELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.turn_timeout", def.Server.TurnTimeout)
	v.SetDefault("llm.base_url", def.LLM.BaseURL)
	v.SetDefault("llm.api_key", def.LLM.APIKey)
	v.SetDefault("llm.model", def.LLM.Model)
	v.SetDefault("llm.temperature", def.LLM.Temperature)
	v.SetDefault("llm.max_tokens", def.LLM.MaxTokens)
	v.SetDefault("llm.timeout", def.LLM.Timeout)
	v.SetDefault("agent.system_prompt_path", def.Agent.SystemPromptPath)
	v.SetDefault("agent.max_tool_rounds", def.Agent.MaxToolRounds)
	v.SetDefault("memory.max_messages", def.Memory.MaxMessages)
	v.SetDefault("memory.item_max_chars", def.Memory.ItemMaxChars)
	v.SetDefault("memory.summary_max_chars", def.Memory.SummaryMaxChars)
	v.SetDefault("tools.manifest_path", def.Tools.ManifestPath)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.development", def.Log.Development)
}

// Save writes the configuration as YAML to the default path, creating the
// directory if needed.
func (c Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	path, err := Path()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Exists returns true if the default config file exists.
func Exists() bool {
	path, err := Path()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
