// Package config loads pipeline configuration from a YAML file with
// ${VAR} environment substitution, falling back to plain environment
// variables when no file exists.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/oaklog/eventagent/internal/llm"
	"github.com/oaklog/eventagent/internal/prompt"
)

// DefaultTimezone anchors naive timestamps and the prompt's time context.
const DefaultTimezone = prompt.DefaultTimezoneName

// LLM selects and authenticates the extraction provider.
type LLM struct {
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	EndpointURL string `yaml:"endpoint_url"`
}

// Fetch tunes the page source.
type Fetch struct {
	UserAgent      string `yaml:"user_agent"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
}

// Config is the full runtime configuration.
type Config struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
	LLM      LLM    `yaml:"llm"`
	Fetch    Fetch  `yaml:"fetch"`
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnv replaces every ${VAR} with the environment value, warning on
// unset variables and substituting the empty string, so a missing secret
// surfaces as a validation error rather than a literal placeholder.
func substituteEnv(raw []byte) []byte {
	return envVarRe.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := string(envVarRe.FindSubmatch(m)[1])
		val, ok := os.LookupEnv(name)
		if !ok {
			log.Warn().Str("var", name).Msg("environment variable not set")
			return nil
		}
		return []byte(val)
	})
}

// Load reads the YAML file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(substituteEnv(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from EVENTAGENT_* environment variables, for
// deployments without a config file.
func FromEnv() (Config, error) {
	cfg := Config{
		Timezone: os.Getenv("EVENTAGENT_TIMEZONE"),
		LLM: LLM{
			Provider:    os.Getenv("EVENTAGENT_PROVIDER"),
			APIKey:      os.Getenv("EVENTAGENT_API_KEY"),
			Model:       os.Getenv("EVENTAGENT_MODEL"),
			EndpointURL: os.Getenv("EVENTAGENT_ENDPOINT_URL"),
		},
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = llm.ProviderOpenAICompatible
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = 30
	}
	if c.Fetch.MaxAttempts <= 0 {
		c.Fetch.MaxAttempts = 3
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "eventagent/1.0"
	}
}

// Validate reports configuration that cannot possibly work.
func (c Config) Validate() error {
	if c.LLM.APIKey == "" {
		return errors.New("config: llm.api_key is required")
	}
	if c.LLM.Model == "" {
		return errors.New("config: llm.model is required")
	}
	if c.LLM.Provider == llm.ProviderOpenAICompatible && c.LLM.EndpointURL == "" {
		return errors.New("config: llm.endpoint_url is required for openai_compatible")
	}
	return nil
}
