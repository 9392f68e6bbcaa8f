package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     map[string]string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name: "openai default",
			env:  map[string]string{"OPENAI_API_KEY": "sk"},
		},
		{
			name: "openai legacy key name",
			env:  map[string]string{"OPENAI_API": "sk"},
		},
		{
			name:    "missing openai key",
			env:     map[string]string{"GOOGLE_API_KEY": "g"},
			wantErr: "OPENAI_API_KEY is required",
		},
		{
			name: "gemini",
			env:  map[string]string{"LLM_PROVIDER": "Gemini", "GOOGLE_API_KEY": "g"},
		},
		{
			name:    "missing gemini key",
			env:     map[string]string{"LLM_PROVIDER": "gemini", "OPENAI_API_KEY": "sk"},
			wantErr: "GOOGLE_API_KEY is required",
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"LLM_PROVIDER": "llama", "OPENAI_API_KEY": "sk"},
			wantErr: "provider",
		},
		{
			name:    "bad style",
			env:     map[string]string{"OPENAI_API_KEY": "sk"},
			mutate:  func(c *Config) { c.Render.SubtitleStyle = "comic" },
			wantErr: "unknown subtitle style",
		},
		{
			name:    "bad zoom",
			env:     map[string]string{"OPENAI_API_KEY": "sk"},
			mutate:  func(c *Config) { c.Render.Zoom = "stretch" },
			wantErr: "unknown zoom mode",
		},
		{
			name:    "zero shorts",
			env:     map[string]string{"OPENAI_API_KEY": "sk"},
			mutate:  func(c *Config) { c.Render.Shorts = 0 },
			wantErr: "shorts",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"OPENAI_API_KEY": "sk", "HLSHORTS_LOG_LEVEL": "LOUD"},
			wantErr: "level",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.ApplyEnv(envMap(tt.env))
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{"LLM_PROVIDER": "gemini", "GOOGLE_API_KEY": "g"}))
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected model: %s", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 1.0 {
		t.Fatalf("unexpected temperature: %v", cfg.LLM.Temperature)
	}
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hlshorts.yaml")
	doc := `
llm:
  provider: openrouter
  model: z-ai/glm-4.5-air:free
  timeout: 2m
render:
  shorts: 3
  subtitle_style: tiktok
store:
  stale_after: 30m
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.ApplyEnv(envMap(map[string]string{"OPENROUTER_API_KEY": "or", "OPENROUTER_ALLOWED_HOSTS": "proxy.internal"}))
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.LLM.Provider != ProviderOpenRouter || cfg.LLM.Model != "z-ai/glm-4.5-air:free" {
		t.Fatalf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout.Duration != 2*time.Minute || cfg.Store.StaleAfter.Duration != 30*time.Minute {
		t.Fatalf("durations not parsed: %+v %+v", cfg.LLM.Timeout, cfg.Store.StaleAfter)
	}
	if cfg.Render.Shorts != 3 || cfg.Render.SubtitleStyle != "tiktok" {
		t.Fatalf("unexpected render config: %+v", cfg.Render)
	}
	if cfg.FFmpeg.FFmpegPath != "ffmpeg" {
		t.Fatalf("expected defaults to survive, got %+v", cfg.FFmpeg)
	}
	if len(cfg.LLM.AllowedHosts) != 1 {
		t.Fatalf("expected allowed hosts from env, got %v", cfg.LLM.AllowedHosts)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := Load(missing, false); err != nil {
		t.Fatalf("optional file: %v", err)
	}
	if _, err := Load(missing, true); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for required file, got %v", err)
	}
}

func TestNormalize_NoCredentialNeeded(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.ApplyEnv(envMap(nil))
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected credential error from Validate, got %v", err)
	}
}
