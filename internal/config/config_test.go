package config

import (
	"os"
	"path/filepath"
	"testing"

	"spacebook/internal/models"
	"spacebook/internal/payment"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
database:
  path: "test.db"
payment:
  base_url: "https://api.stripe.com"
  secret_key: "sk_test_123"
  webhook_secret: "whsec_123"
booking:
  cancel_notice_hours: 48
api:
  enabled: true
  auth:
    api_keys:
      - key: "test-key"
        name: "test-client"
        permissions: ["bookings:read"]
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Payment.SecretKey != "sk_test_123" {
		t.Errorf("expected secret key sk_test_123, got %s", cfg.Payment.SecretKey)
	}
	if cfg.Booking.CancelNoticeHours != 48 {
		t.Errorf("expected cancel notice 48, got %d", cfg.Booking.CancelNoticeHours)
	}
	if len(cfg.API.Auth.APIKeys) != 1 || cfg.API.Auth.APIKeys[0].Key != "test-key" {
		t.Errorf("expected 1 api key test-key")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("PAYMENT_SECRET", "sk_from_env")

	yamlContent := `
database:
  path: "test.db"
payment:
  secret_key: "${PAYMENT_SECRET}"
  webhook_secret: "whsec_123"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Payment.SecretKey != "sk_from_env" {
		t.Errorf("expected secret key from env, got %s", cfg.Payment.SecretKey)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Payment:  payment.Config{SecretKey: "sk", WebhookSecret: "whsec"},
			},
			wantErr: false,
		},
		{
			name: "missing database path",
			cfg: Config{
				Payment: payment.Config{SecretKey: "sk", WebhookSecret: "whsec"},
			},
			wantErr: true,
		},
		{
			name: "missing payment secret",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Payment:  payment.Config{WebhookSecret: "whsec"},
			},
			wantErr: true,
		},
		{
			name: "missing webhook secret",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Payment:  payment.Config{SecretKey: "sk"},
			},
			wantErr: true,
		},
		{
			name: "auth enabled without keys",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Payment:  payment.Config{SecretKey: "sk", WebhookSecret: "whsec"},
				API:      APIConfig{Enabled: true, Auth: APIAuthConfig{Enabled: true}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header x-api-key, got %s", cfg.API.Auth.HeaderAPIKey)
	}
	if cfg.Booking.CancelNoticeHours != models.CancelNoticeHours {
		t.Errorf("expected default cancel notice %d, got %d", models.CancelNoticeHours, cfg.Booking.CancelNoticeHours)
	}
	if cfg.Booking.Currency != models.DefaultCurrency {
		t.Errorf("expected default currency %s, got %s", models.DefaultCurrency, cfg.Booking.Currency)
	}
	if cfg.Worker.ReconcileInterval != "1m" {
		t.Errorf("expected default reconcile interval 1m, got %s", cfg.Worker.ReconcileInterval)
	}
}
