package internal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config controls the importer: where the database lives, which turn
// assignment algorithm runs, and which request URLs count as bookkeeping
// rather than genuine model traffic.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	Algorithm    string `yaml:"algorithm"` // request-id | merge-split

	// URLAllow, when non-empty, restricts model traffic to matching URLs;
	// everything else is tagged bookkeeping. URLDeny tags matching URLs as
	// bookkeeping regardless. Both are case-sensitive substring matches.
	URLAllow []string `yaml:"url_allow"`
	URLDeny  []string `yaml:"url_deny"`
}

// DefaultConfig returns the configuration used when no file is given.
// loadCodeAssist and countTokens are the Gemini CLI bookkeeping endpoints
// that show up in real captures.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "llmcapture.db",
		Algorithm:    AlgorithmRequestID,
		URLDeny:      []string{"loadCodeAssist", "countTokens"},
	}
}

// LoadConfig reads a YAML config file, filling unset fields from defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if loaded.DatabasePath != "" {
		cfg.DatabasePath = loaded.DatabasePath
	}
	if loaded.Algorithm != "" {
		cfg.Algorithm = loaded.Algorithm
	}
	if loaded.URLAllow != nil {
		cfg.URLAllow = loaded.URLAllow
	}
	if loaded.URLDeny != nil {
		cfg.URLDeny = loaded.URLDeny
	}

	if cfg.Algorithm != AlgorithmRequestID && cfg.Algorithm != AlgorithmMergeSplit {
		return nil, fmt.Errorf("unknown algorithm %q", cfg.Algorithm)
	}

	return cfg, nil
}

// Save writes the config back out as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
