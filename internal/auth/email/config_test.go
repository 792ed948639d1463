package email

import "testing"

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("FRAGMENTUI_SENDGRID_API_KEY", "")
	t.Setenv("FRAGMENTUI_EMAIL_FROM_NAME", "")
	t.Setenv("FRAGMENTUI_EMAIL_FROM_ADDRESS", "")
	t.Setenv("FRAGMENTUI_EMAIL_SANDBOX", "")

	cfg := LoadConfigFromEnv()
	if cfg.FromName != "FragmentUI" {
		t.Fatalf("from name = %q, want FragmentUI", cfg.FromName)
	}
	if cfg.FromAddress != "no-reply@fragmentui.dev" {
		t.Fatalf("from address = %q, want no-reply@fragmentui.dev", cfg.FromAddress)
	}
	if cfg.SandboxMode {
		t.Fatal("expected sandbox mode off by default")
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("FRAGMENTUI_SENDGRID_API_KEY", "sg-key")
	t.Setenv("FRAGMENTUI_EMAIL_FROM_NAME", "Fragment Accounts")
	t.Setenv("FRAGMENTUI_EMAIL_FROM_ADDRESS", "accounts@fragmentui.dev")
	t.Setenv("FRAGMENTUI_EMAIL_SANDBOX", "true")

	cfg := LoadConfigFromEnv()
	if cfg.SendGridAPIKey != "sg-key" {
		t.Fatalf("api key = %q, want sg-key", cfg.SendGridAPIKey)
	}
	if cfg.FromName != "Fragment Accounts" {
		t.Fatalf("from name = %q", cfg.FromName)
	}
	if cfg.FromAddress != "accounts@fragmentui.dev" {
		t.Fatalf("from address = %q", cfg.FromAddress)
	}
	if !cfg.SandboxMode {
		t.Fatal("expected sandbox mode on")
	}
}
