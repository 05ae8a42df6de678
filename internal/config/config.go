// Package config holds the Iteration Controller's static, per-cycle
// configuration (spec.md §6): turn budgets, the Compression Engine and
// Working Context Engine tunables, retry/backoff knobs, CI polling, and
// the Memory Store's retrieval budget. Values come from defaults,
// optionally overridden by a YAML file (loaded the way Nexus loads
// its own config, via LoadRaw's $include-aware merge) and then by the
// small, fixed set of environment variables spec.md §6 names.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexusforge/agentloop/internal/compaction"
	"github.com/nexusforge/agentloop/internal/llm"
	"github.com/nexusforge/agentloop/internal/memory"
	"github.com/nexusforge/agentloop/internal/tooling"
	"github.com/nexusforge/agentloop/internal/workctx"
)

// TurnsConfig bounds each session's turn budget.
type TurnsConfig struct {
	MaxPlanner int `yaml:"max_planner"`
	MaxBuilder int `yaml:"max_builder"`
	MaxFixer   int `yaml:"max_fixer"`
}

// CIConfig bounds AWAIT_CI's polling loop.
type CIConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	Timeout         time.Duration `yaml:"timeout"`
	NoChecksTimeout time.Duration `yaml:"no_checks_timeout"`
}

// CoverageConfig bounds the Planner's coverage-report section.
type CoverageConfig struct {
	MaxLowCoverageFiles int `yaml:"max_low_coverage_files"`
}

// ErrorsConfig bounds how much failure text gets embedded in prompts.
type ErrorsConfig struct {
	MaxLoopErrorChars   int `yaml:"max_loop_error_chars"`
	MaxCheckOutputChars int `yaml:"max_check_output_chars"`
}

// ModelsConfig names the model id used for each session phase.
type ModelsConfig struct {
	Planner    string `yaml:"planner"`
	Builder    string `yaml:"builder"`
	Fixer      string `yaml:"fixer"`
	Reflector  string `yaml:"reflector"`
	Memory     string `yaml:"memory"`
	Summarizer string `yaml:"summarizer"`
}

// MaxTokensConfig bounds each session phase's response size.
type MaxTokensConfig struct {
	Planner   int `yaml:"planner"`
	Builder   int `yaml:"builder"`
	Fixer     int `yaml:"fixer"`
	Reflector int `yaml:"reflector"`
}

// Config is the Iteration Controller's complete static configuration.
type Config struct {
	Turns         TurnsConfig       `yaml:"turns"`
	Summarization compaction.Config `yaml:"summarization"`
	Context       workctx.Config    `yaml:"context"`
	Tools         tooling.Config    `yaml:"tools"`
	API           llm.Config        `yaml:"api"`
	CI            CIConfig          `yaml:"ci"`
	Memory        memory.Config     `yaml:"memory"`
	Coverage      CoverageConfig    `yaml:"coverage"`
	Errors        ErrorsConfig      `yaml:"errors"`
	Models        ModelsConfig      `yaml:"models"`
	MaxTokens     MaxTokensConfig   `yaml:"max_tokens"`

	// Env carries the fixed set of environment variables spec.md §6
	// names; never settable from the YAML file.
	Env Env `yaml:"-"`
}

// Env is the fixed environment surface spec.md §6 allows to influence
// behavior. No other environment variable is read anywhere in the repo.
type Env struct {
	AnthropicAPIKey string
	GithubToken     string
	GithubOwner     string
	GithubRepo      string
	WorkspacePath   string
	LogLevel        string
	NodeEnv         string
}

// Default returns Config populated with every default spec.md §6 names.
func Default() Config {
	return Config{
		Turns:         TurnsConfig{MaxPlanner: 25, MaxBuilder: 40, MaxFixer: 3},
		Summarization: compaction.DefaultConfig(),
		Context:       workctx.DefaultConfig(),
		Tools:         tooling.DefaultConfig(),
		API:           llm.DefaultConfig(),
		CI: CIConfig{
			PollInterval:    15 * time.Second,
			Timeout:         20 * time.Minute,
			NoChecksTimeout: 90 * time.Second,
		},
		Memory:   memory.DefaultConfig(),
		Coverage: CoverageConfig{MaxLowCoverageFiles: 10},
		Errors:   ErrorsConfig{MaxLoopErrorChars: 8000, MaxCheckOutputChars: 4000},
		Models: ModelsConfig{
			Planner:    "claude-opus-4-6",
			Builder:    "claude-sonnet-4-5",
			Fixer:      "claude-sonnet-4-5",
			Reflector:  "claude-haiku-4-5",
			Memory:     "claude-haiku-4-5",
			Summarizer: "claude-haiku-4-5",
		},
		MaxTokens: MaxTokensConfig{Planner: 8192, Builder: 8192, Fixer: 8192, Reflector: 2048},
	}
}

// Load builds Config from defaults, an optional YAML file at path
// (skipped entirely if path is empty or the file doesn't exist — every
// field has a usable default), and finally the required environment
// variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			overlay, err := LoadRaw(path)
			if err != nil {
				return Config{}, fmt.Errorf("config: load %s: %w", path, err)
			}

			defaultsRaw, err := yaml.Marshal(cfg)
			if err != nil {
				return Config{}, fmt.Errorf("config: marshal defaults: %w", err)
			}
			var base map[string]any
			if err := yaml.Unmarshal(defaultsRaw, &base); err != nil {
				return Config{}, fmt.Errorf("config: unmarshal defaults: %w", err)
			}

			merged := mergeMaps(base, overlay)
			mergedRaw, err := yaml.Marshal(merged)
			if err != nil {
				return Config{}, fmt.Errorf("config: marshal merged config: %w", err)
			}
			if err := yaml.Unmarshal(mergedRaw, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}

	env, err := loadEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.Env = env
	return cfg, nil
}

func loadEnv() (Env, error) {
	e := Env{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		GithubToken:     os.Getenv("GITHUB_TOKEN"),
		GithubOwner:     os.Getenv("GITHUB_OWNER"),
		GithubRepo:      os.Getenv("GITHUB_REPO"),
		WorkspacePath:   os.Getenv("WORKSPACE_PATH"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		NodeEnv:         os.Getenv("NODE_ENV"),
	}
	var missing []string
	for name, v := range map[string]string{
		"ANTHROPIC_API_KEY": e.AnthropicAPIKey,
		"GITHUB_TOKEN":      e.GithubToken,
		"GITHUB_OWNER":      e.GithubOwner,
		"GITHUB_REPO":       e.GithubRepo,
		"WORKSPACE_PATH":    e.WorkspacePath,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Env{}, fmt.Errorf("config: missing required environment variables: %v", missing)
	}
	if e.LogLevel == "" {
		e.LogLevel = "info"
	}
	return e, nil
}
