package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.TCGPlayer.APIKey = "key"
	return cfg
}

func TestDefaults_ValidOnceKeyed(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with an api key should validate: %v", err)
	}

	bare := Defaults()
	err := bare.Validate()
	if err == nil || !strings.Contains(err.Error(), "tcgplayer: api_key") {
		t.Errorf("expected missing api key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Mode = "forever" }, "unknown mode"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"db port", func(c *Config) { c.Database.Port = 0 }, "database: port"},
		{"db port ignored with dsn", func(c *Config) { c.Database.Port = 0; c.Database.DSN = "postgres://x" }, ""},
		{"redis addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis: addr"},
		{"rate", func(c *Config) { c.TCGPlayer.MaxRequestsPerMinute = 0 }, "max_requests_per_minute"},
		{"storefront url", func(c *Config) { c.Storefront.Enabled = true }, "storefront: base_url"},
		{"combine policy", func(c *Config) { c.Seasonality.CombinePolicy = "median" }, "seasonality"},
		{"baseline", func(c *Config) { c.IPS.Baseline = 1 }, "baseline"},
		{"discount", func(c *Config) { c.IPS.SubstitutionDiscount = 0 }, "substitution_discount"},
		{"signal range", func(c *Config) { c.IPS.MinSignal = 1.2 }, "min_signal"},
		{"inventory csv path", func(c *Config) { c.Inventory.Source = "csv" }, "csv_path"},
		{"inventory postgres without db", func(c *Config) { c.Database.Enabled = false }, "requires database.enabled"},
		{"inventory source", func(c *Config) { c.Inventory.Source = "sheets" }, "unknown source"},
		{"cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule: invalid cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autobuy.toml")
	data := `
log_level = "debug"

[tcgplayer]
api_key = "from-file"
max_requests_per_minute = 120
timeout = "10s"

[seasonality]
events_file = "events.json"
combine_policy = "product"

[ips]
substitution_discount = 0.7

[inventory]
source = "csv"
csv_path = "stock.csv"

[schedule]
cron = "0 30 5 * * *"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AUTOBUY_TCGPLAYER_API_KEY", "from-env")
	t.Setenv("AUTOBUY_SCHEDULE_RUN_TIMEOUT", "5m")
	t.Setenv("AUTOBUY_REDIS_DB", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.TCGPlayer.APIKey != "from-env" {
		t.Errorf("env should override file, got %q", cfg.TCGPlayer.APIKey)
	}
	if cfg.TCGPlayer.MaxRequestsPerMinute != 120 || cfg.TCGPlayer.Timeout.Duration != 10*time.Second {
		t.Errorf("unexpected tcgplayer config %+v", cfg.TCGPlayer)
	}
	if cfg.TCGPlayer.CategoryID != 1 {
		t.Errorf("unset fields should keep defaults, got category %d", cfg.TCGPlayer.CategoryID)
	}
	if cfg.IPS.SubstitutionDiscount != 0.7 || cfg.IPS.MaxSignal != 1.5 {
		t.Errorf("unexpected ips weights %+v", cfg.IPS)
	}
	if cfg.Schedule.RunTimeout.Duration != 5*time.Minute {
		t.Errorf("RunTimeout = %v", cfg.Schedule.RunTimeout)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("unparseable env values should be ignored, got %d", cfg.Redis.DB)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[schedule]\nrun_timeout = \"soon\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Schedule.Cron != Defaults().Schedule.Cron {
		t.Errorf("expected default cron, got %q", cfg.Schedule.Cron)
	}
}
