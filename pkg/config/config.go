// Package config loads the YAML configuration shared by the memory CLI and
// embedding agents.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
)

// EnvMemoryDir overrides the configured memory base directory.
const EnvMemoryDir = "AUTOBYTEUS_MEMORY_DIR"

// DefaultMemoryDirName is the directory used under the working directory
// when nothing else names one.
const DefaultMemoryDirName = "memory"

// Config is the root configuration document.
type Config struct {
	// Memory storage and compaction settings
	Memory MemoryConfig `yaml:"memory" json:"memory"`

	// LLM used for summarization
	LLM LLMConfig `yaml:"llm" json:"llm"`

	// Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// MemoryConfig configures one agent's memory.
type MemoryConfig struct {
	BaseDir string `yaml:"base_dir" json:"base_dir"`
	AgentID string `yaml:"agent_id" json:"agent_id"`

	// Compaction policy
	TriggerRatio float64 `yaml:"trigger_ratio" json:"trigger_ratio"`
	RawTailTurns int     `yaml:"raw_tail_turns" json:"raw_tail_turns"`
	InputBudget  int     `yaml:"input_budget" json:"input_budget"` // Prompt token budget; 0 derives it from the model's context window

	// Snapshot limits, 0 means all
	MaxEpisodic int `yaml:"max_episodic" json:"max_episodic"`
	MaxSemantic int `yaml:"max_semantic" json:"max_semantic"`
}

// LLMConfig configures the summarization provider.
type LLMConfig struct {
	Model              string `yaml:"model" json:"model"`
	SummarizationModel string `yaml:"summarization_model" json:"summarization_model"`
	BaseURL            string `yaml:"base_url" json:"base_url"`
	APIKeyEnv          string `yaml:"api_key_env" json:"api_key_env"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Addr      string `yaml:"addr" json:"addr"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Default returns a configuration suitable for a single local agent.
func Default() *Config {
	return &Config{
		Memory: MemoryConfig{
			AgentID:      "default",
			TriggerRatio: 0.8,
			RawTailTurns: 2,
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Metrics: MetricsConfig{
			Addr:      ":9090",
			Namespace: "autobyteus",
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML through a temporary file and rename.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := memory.ValidateAgentID(c.Memory.AgentID); err != nil {
		return err
	}

	if c.Memory.TriggerRatio <= 0 || c.Memory.TriggerRatio > 1 {
		return fmt.Errorf("trigger_ratio must be in (0, 1], got %v", c.Memory.TriggerRatio)
	}

	if c.Memory.RawTailTurns < 0 {
		return fmt.Errorf("raw_tail_turns cannot be negative")
	}

	if c.Memory.InputBudget < 0 {
		return fmt.Errorf("input_budget cannot be negative")
	}

	if c.Memory.MaxEpisodic < 0 || c.Memory.MaxSemantic < 0 {
		return fmt.Errorf("max_episodic and max_semantic cannot be negative")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	return nil
}

// APIKey returns the LLM API key from the configured environment variable.
func (c *Config) APIKey() string {
	name := c.LLM.APIKeyEnv
	if name == "" {
		name = "OPENAI_API_KEY"
	}
	return os.Getenv(name)
}

// MemoryDir resolves the memory base directory with override taking
// precedence over the configured base_dir.
func (c *Config) MemoryDir(override string) string {
	return ResolveMemoryDir(override, c.Memory.BaseDir)
}

// ResolveMemoryDir picks the memory base directory: override, then
// $AUTOBYTEUS_MEMORY_DIR, then fallback, then ./memory under the working
// directory.
func ResolveMemoryDir(override, fallback string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(EnvMemoryDir); env != "" {
		return env
	}
	if fallback != "" {
		return fallback
	}
	cwd, err := os.Getwd()
	if err != nil {
		return DefaultMemoryDirName
	}
	return filepath.Join(cwd, DefaultMemoryDirName)
}
