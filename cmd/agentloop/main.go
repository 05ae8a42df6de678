// Package main is the CLI entry point for the agentloop self-modifying
// coding agent.
//
// # Basic usage
//
//	agentloop run --config agentloop.yaml
//
// # Environment variables
//
// spec.md §6's fixed environment surface — no other variable is read
// anywhere in the repo:
//
//   - ANTHROPIC_API_KEY: Anthropic API key (required)
//   - GITHUB_TOKEN: GitHub token with repo/workflow scope (required)
//   - GITHUB_OWNER, GITHUB_REPO: the repository the agent modifies (required)
//   - WORKSPACE_PATH: directory under which per-cycle checkouts are made (required)
//   - LOG_LEVEL: slog level, one of debug/info/warn/error (default "info")
//   - NODE_ENV: environment label attached to trace spans (optional)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexusforge/agentloop/internal/config"
	"github.com/nexusforge/agentloop/internal/controller"
	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/hosting"
	"github.com/nexusforge/agentloop/internal/llm"
	"github.com/nexusforge/agentloop/internal/memory"
	"github.com/nexusforge/agentloop/internal/store"
	"github.com/nexusforge/agentloop/internal/tracing"
)

// Build information, populated by ldflags during release builds.
//
//	go build -ldflags "-X main.version=v0.1.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentloop",
		Short:        "agentloop - a self-modifying coding agent",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildRunCmd())
	return rootCmd
}

// buildRunCmd wires every external interface and runs exactly one
// Iteration Controller cycle. Per spec.md §6, every cycle outcome —
// merged, abandoned, no-plan — is a clean exit 0; only a fatal error
// that prevented the cycle from reaching a terminal state exits
// non-zero, and even then the persistent-store disconnect still runs
// first (RunCycle's deferred cleanup covers that, not this function).
func buildRunCmd() *cobra.Command {
	var configPath string
	var mongoURI string
	var mongoDB string
	var otelEndpoint string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one plan-build-push-merge cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			setupLogging(cfg.Env.LogLevel)

			shutdownTracing := tracing.Init(otelEndpoint, version, cfg.Env.NodeEnv)
			defer shutdownTracing(context.Background())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Connect(ctx, mongoURI, mongoDB)
			if err != nil {
				return fmt.Errorf("connect store: %w", err)
			}

			host := hosting.NewClient(cfg.Env.GithubToken, cfg.Env.GithubOwner, cfg.Env.GithubRepo)

			summarizer := &memorySummarizer{
				client: llm.NewClient(cfg.Env.AnthropicAPIKey, nil, cfg.API),
				model:  cfg.Models.Memory,
			}
			mem, err := memory.NewManager(st, summarizer, cfg.Memory)
			if err != nil {
				_ = st.Disconnect(ctx)
				return fmt.Errorf("load memory: %w", err)
			}

			repoURL := fmt.Sprintf("https://github.com/%s/%s.git", cfg.Env.GithubOwner, cfg.Env.GithubRepo)
			ctl := controller.New(cfg, st, host, mem, repoURL, cfg.Env.GithubOwner, cfg.Env.GithubRepo)

			outcome, err := ctl.RunCycle(ctx)
			if err != nil {
				return fmt.Errorf("cycle failed: %w", err)
			}

			slog.Info("cycle finished", "state", outcome.State, "pr", outcome.PRNumber, "summary", outcome.Summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentloop.yaml", "Path to YAML configuration file (optional)")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "mongodb://localhost:27017", "Persistent store connection URI")
	cmd.Flags().StringVar(&mongoDB, "mongo-db", "agentloop", "Persistent store database name")
	cmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP trace exporter endpoint (empty disables tracing)")
	return cmd
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// memorySummarizer adapts the LLM Client to memory.Summarizer, kept
// here rather than inside internal/memory so that package stays free
// of an internal/llm import (its own doc comment's stated reason).
type memorySummarizer struct {
	client *llm.Client
	model  string
}

func (s *memorySummarizer) Summarize(content string) (string, error) {
	resp, err := s.client.Call(context.Background(), llm.Request{
		Phase:     llm.PhaseMemory,
		Model:     s.model,
		System:    "Summarize the following note in 25 words or fewer. Respond with only the summary.",
		Messages:  []convo.Message{convo.PlainText(convo.RoleUser, content)},
		MaxTokens: 128,
	})
	if err != nil {
		return "", err
	}
	return convo.Message{Role: convo.RoleAssistant, Content: resp.Content}.Text(), nil
}
