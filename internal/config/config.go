package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/researchcli/research/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Models     ModelsConfig     `koanf:"models"`
	Providers  ProvidersConfig  `koanf:"providers"`
	Generation GenerationConfig `koanf:"generation"`
	Session    SessionConfig    `koanf:"session"`
	Tools      ToolsConfig      `koanf:"tools"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type ModelsConfig struct {
	Default  string `koanf:"default"`
	Fallback string `koanf:"fallback"`
}

// ProvidersConfig holds one immutable ProviderConfig per provider family.
// Constructed once at session start; nothing reads credentials ambiently
// after this point.
type ProvidersConfig struct {
	Gemini    ProviderConfig `koanf:"gemini"`
	OpenAI    ProviderConfig `koanf:"openai"`
	Anthropic ProviderConfig `koanf:"anthropic"`
	Bedrock   BedrockConfig  `koanf:"bedrock"`
}

type ProviderConfig struct {
	APIKey     string `koanf:"api_key"`
	BaseURL    string `koanf:"base_url"`
	Timeout    string `koanf:"timeout"`
	MaxRetries int    `koanf:"max_retries"`
}

type BedrockConfig struct {
	Region     string `koanf:"region"`
	Timeout    string `koanf:"timeout"`
	MaxRetries int    `koanf:"max_retries"`
}

type GenerationConfig struct {
	Temperature   float64  `koanf:"temperature"`
	TopP          float64  `koanf:"top_p"`
	TopK          int      `koanf:"top_k"`
	MaxTokens     int      `koanf:"max_tokens"`
	StopSequences []string `koanf:"stop_sequences"`
}

type SessionConfig struct {
	MaxTurns int    `koanf:"max_turns"`
	Timeout  string `koanf:"timeout"`
	Dir      string `koanf:"dir"`
	Stream   bool   `koanf:"stream"`
}

type ToolsConfig struct {
	ReadFileMaxBytes int    `koanf:"read_file_max_bytes"`
	Workdir          string `koanf:"workdir"`
}

const (
	DefaultLogLevel         = "warn"
	DefaultModel            = "gemini-2.5-pro"
	DefaultFallbackModel    = "gemini-2.5-flash"
	DefaultProviderTimeout  = "120s"
	DefaultMaxRetries       = 2
	DefaultMaxTurns         = 10
	DefaultSessionTimeout   = "10m"
	DefaultGenTemperature   = 0.7
	DefaultGenMaxTokens     = 4096
	DefaultReadFileMaxBytes = 256 * 1024
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"log.level":                       DefaultLogLevel,
		"models.default":                  DefaultModel,
		"models.fallback":                 DefaultFallbackModel,
		"providers.gemini.timeout":        DefaultProviderTimeout,
		"providers.gemini.max_retries":    DefaultMaxRetries,
		"providers.openai.timeout":        DefaultProviderTimeout,
		"providers.openai.max_retries":    DefaultMaxRetries,
		"providers.anthropic.timeout":     DefaultProviderTimeout,
		"providers.anthropic.max_retries": DefaultMaxRetries,
		"providers.bedrock.timeout":       DefaultProviderTimeout,
		"providers.bedrock.max_retries":   DefaultMaxRetries,
		"generation.temperature":          DefaultGenTemperature,
		"generation.max_tokens":           DefaultGenMaxTokens,
		"session.max_turns":               DefaultMaxTurns,
		"session.timeout":                 DefaultSessionTimeout,
		"session.stream":                  true,
		"session.dir":                     filepath.Join(os.Getenv("HOME"), ".research", "sessions"),
		"tools.read_file_max_bytes":       DefaultReadFileMaxBytes,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".research", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("RESEARCH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "RESEARCH_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	// Standard provider env keys fill gaps left by the config file.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Providers.Gemini.APIKey == "" {
		cfg.Providers.Gemini.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Providers.OpenAI.APIKey == "" {
		cfg.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Providers.Anthropic.APIKey == "" {
		cfg.Providers.Anthropic.APIKey = key
	}

	return &cfg, nil
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	sessionDir, err := pathutil.Expand(cfg.Session.Dir)
	if err != nil {
		return err
	}
	if sessionDir != "" {
		cfg.Session.Dir = sessionDir
	}

	workdir, err := pathutil.Expand(cfg.Tools.Workdir)
	if err != nil {
		return err
	}
	if workdir != "" {
		cfg.Tools.Workdir = workdir
	}

	return nil
}
