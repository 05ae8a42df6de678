package config

import "testing"

func TestDefault_MatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Turns.MaxPlanner != 25 || cfg.Turns.MaxBuilder != 40 || cfg.Turns.MaxFixer != 3 {
		t.Errorf("unexpected turn budgets: %+v", cfg.Turns)
	}
	if cfg.Coverage.MaxLowCoverageFiles != 10 {
		t.Errorf("coverage default: got %d, want 10", cfg.Coverage.MaxLowCoverageFiles)
	}
}

func TestLoad_MissingEnvIsError(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_OWNER", "")
	t.Setenv("GITHUB_REPO", "")
	t.Setenv("WORKSPACE_PATH", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected an error when required environment variables are unset")
	}
}

func TestLoad_ReadsRequiredEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("GITHUB_TOKEN", "gh-test")
	t.Setenv("GITHUB_OWNER", "nexusforge")
	t.Setenv("GITHUB_REPO", "agentloop")
	t.Setenv("WORKSPACE_PATH", "/tmp/workspace")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env.GithubOwner != "nexusforge" || cfg.Env.GithubRepo != "agentloop" {
		t.Errorf("env not populated: %+v", cfg.Env)
	}
	if cfg.Env.LogLevel != "info" {
		t.Errorf("LogLevel default: got %q, want info", cfg.Env.LogLevel)
	}
	if cfg.Turns.MaxBuilder != 40 {
		t.Errorf("defaults not applied alongside env: %+v", cfg.Turns)
	}
}
