package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "TELEGRAM_BOT_TOKEN", "AI_PROVIDER"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
gemini:
  api_key: test-key
portfolio:
  holdings:
    - ticker: nvda
      quantity: 2
      avg_price: 120
      source: gemini
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Provider != ProviderGemini {
		t.Errorf("provider = %q, want gemini", cfg.AI.Provider)
	}
	if cfg.Portfolio.DefaultExchangeRate != 150 {
		t.Errorf("default exchange rate = %v, want 150", cfg.Portfolio.DefaultExchangeRate)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Web.Port)
	}
	if cfg.AITimeout().Seconds() != 60 {
		t.Errorf("timeout = %v, want 60s", cfg.AITimeout())
	}
	if cfg.Chat.ErrorMessage == "" {
		t.Error("expected a default chat error message")
	}
	if len(cfg.Portfolio.Holdings) != 1 || cfg.Portfolio.Holdings[0].AvgPrice != 120 {
		t.Errorf("holdings = %+v", cfg.Portfolio.Holdings)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "from-env")
	path := writeConfig(t, `
ai:
  provider: openai
openai:
  api_key: from-file
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OpenAI.APIKey != "from-env" {
		t.Errorf("api key = %q, want from-env", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("base url = %q", cfg.OpenAI.BaseURL)
	}
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "env-only")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gemini.APIKey != "env-only" {
		t.Errorf("api key = %q", cfg.Gemini.APIKey)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing gemini key", "ai:\n  provider: gemini\n", "gemini.api_key"},
		{"unknown provider", "ai:\n  provider: bard\n", "unknown ai.provider"},
		{"negative timeout", "gemini:\n  api_key: k\nai:\n  timeout_seconds: -5\n", "ai.timeout_seconds"},
		{"bad schedule", "gemini:\n  api_key: k\nrefresh:\n  schedule: every day\n", "refresh.schedule"},
		{"telegram without token", "gemini:\n  api_key: k\ntelegram:\n  enabled: true\n  chat_id: 1\n", "telegram.bot_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ScheduleDescriptor(t *testing.T) {
	clearEnv(t)
	if _, err := Load(writeConfig(t, "gemini:\n  api_key: k\nrefresh:\n  schedule: \"@every 15m\"\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}
