package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redub/internal/config"
)

func TestLoadDefaultsExpandPathsAndEnvKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env-test")
	t.Setenv("OPENROUTER_API_KEY", "or-env-test")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "redub", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Transcription.PrimaryAPIKey != "sk-env-test" {
		t.Fatalf("expected primary transcription key from env, got %q", cfg.Transcription.PrimaryAPIKey)
	}
	if cfg.LLM.APIKey != "or-env-test" {
		t.Fatalf("expected llm key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Pipeline.TargetScript != "Devanagari" {
		t.Fatalf("expected script derived from hi, got %q", cfg.Pipeline.TargetScript)
	}
	if cfg.Pipeline.PreferSource != "secondary" {
		t.Fatalf("expected secondary preference by default, got %q", cfg.Pipeline.PreferSource)
	}
	if cfg.Transcription.ConfidenceLogProb != -1.5 {
		t.Fatalf("unexpected confidence threshold: %v", cfg.Transcription.ConfidenceLogProb)
	}
	if cfg.Workflow.MediaTimeout != 300 {
		t.Fatalf("unexpected media timeout: %d", cfg.Workflow.MediaTimeout)
	}
}

func TestLoadParsesFileAndDerivesScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "redub.toml")
	content := strings.Join([]string{
		"[pipeline]",
		`target_language = "es"`,
		`prefer_source = "primary"`,
		"",
		"[transcription]",
		"primary_enabled = true",
		`primary_api_key = "sk-file"`,
		"local_enabled = false",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Pipeline.TargetScript != "Latin" {
		t.Fatalf("expected Latin script for es, got %q", cfg.Pipeline.TargetScript)
	}
	if cfg.Pipeline.PreferSource != "primary" {
		t.Fatalf("expected primary preference, got %q", cfg.Pipeline.PreferSource)
	}
	if cfg.Transcription.PrimaryAPIKey != "sk-file" {
		t.Fatalf("expected file key to win, got %q", cfg.Transcription.PrimaryAPIKey)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name: "no transcription source",
			mutate: func(c *config.Config) {
				c.Transcription.PrimaryEnabled = false
				c.Transcription.LocalEnabled = false
			},
			want: "at least one of",
		},
		{
			name: "positive confidence threshold",
			mutate: func(c *config.Config) {
				c.Transcription.ConfidenceLogProb = 1.5
			},
			want: "must be negative",
		},
		{
			name: "unknown local model",
			mutate: func(c *config.Config) {
				c.Transcription.LocalModel = "enormous"
			},
			want: "unknown model",
		},
		{
			name: "storage enabled without bucket",
			mutate: func(c *config.Config) {
				c.Storage.Enabled = true
				c.Storage.Region = "us-east-1"
			},
			want: "storage.bucket",
		},
		{
			name: "bad prefer source",
			mutate: func(c *config.Config) {
				c.Pipeline.PreferSource = "tertiary"
			},
			want: "prefer_source",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Pipeline.TargetScript = "Devanagari"
			cfg.Pipeline.PreferSource = "secondary"
			cfg.Paths.StagingDir = "/tmp/staging"
			cfg.Paths.LogDir = "/tmp/logs"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
