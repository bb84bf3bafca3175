package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults, loads .env if present and
// applies AUTOBUY_* overrides. An empty path skips the file. The result is
// not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "AUTOBUY_MODE")
	setStr(&cfg.LogLevel, "AUTOBUY_LOG_LEVEL")
	setBool(&cfg.LogDevelopment, "AUTOBUY_LOG_DEVELOPMENT")

	setBool(&cfg.Database.Enabled, "AUTOBUY_DATABASE_ENABLED")
	setStr(&cfg.Database.DSN, "DATABASE_URL")
	setStr(&cfg.Database.DSN, "AUTOBUY_DATABASE_DSN")
	setStr(&cfg.Database.Host, "AUTOBUY_DATABASE_HOST")
	setInt(&cfg.Database.Port, "AUTOBUY_DATABASE_PORT")
	setStr(&cfg.Database.Database, "AUTOBUY_DATABASE_NAME")
	setStr(&cfg.Database.User, "AUTOBUY_DATABASE_USER")
	setStr(&cfg.Database.Password, "AUTOBUY_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "AUTOBUY_DATABASE_SSL_MODE")
	setInt(&cfg.Database.MaxConns, "AUTOBUY_DATABASE_MAX_CONNS")
	setBool(&cfg.Database.RunMigrations, "AUTOBUY_DATABASE_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "AUTOBUY_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "AUTOBUY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUTOBUY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUTOBUY_REDIS_DB")

	setInt(&cfg.Cache.Capacity, "AUTOBUY_CACHE_CAPACITY")
	setDuration(&cfg.Cache.DefaultTTL, "AUTOBUY_CACHE_DEFAULT_TTL")

	setBool(&cfg.TCGPlayer.Enabled, "AUTOBUY_TCGPLAYER_ENABLED")
	setStr(&cfg.TCGPlayer.BaseURL, "AUTOBUY_TCGPLAYER_BASE_URL")
	setStr(&cfg.TCGPlayer.APIKey, "AUTOBUY_TCGPLAYER_API_KEY")
	setInt(&cfg.TCGPlayer.MaxRequestsPerMinute, "AUTOBUY_TCGPLAYER_MAX_REQUESTS_PER_MINUTE")
	setBool(&cfg.TCGPlayer.ExcludeHeavilyPlayed, "AUTOBUY_TCGPLAYER_EXCLUDE_HEAVILY_PLAYED")

	setBool(&cfg.Storefront.Enabled, "AUTOBUY_STOREFRONT_ENABLED")
	setStr(&cfg.Storefront.BaseURL, "AUTOBUY_STOREFRONT_BASE_URL")

	setStr(&cfg.Scryfall.BaseURL, "AUTOBUY_SCRYFALL_BASE_URL")

	setStr(&cfg.Substitution.GroupsFile, "AUTOBUY_SUBSTITUTION_GROUPS_FILE")
	setStr(&cfg.Seasonality.EventsFile, "AUTOBUY_SEASONALITY_EVENTS_FILE")
	setStr(&cfg.Seasonality.CombinePolicy, "AUTOBUY_SEASONALITY_COMBINE_POLICY")

	setFloat64(&cfg.IPS.SubstitutionDiscount, "AUTOBUY_IPS_SUBSTITUTION_DISCOUNT")

	setStr(&cfg.Inventory.Source, "AUTOBUY_INVENTORY_SOURCE")
	setStr(&cfg.Inventory.View, "AUTOBUY_INVENTORY_VIEW")
	setStr(&cfg.Inventory.CSVPath, "AUTOBUY_INVENTORY_CSV_PATH")

	setStr(&cfg.Schedule.Cron, "AUTOBUY_SCHEDULE_CRON")
	setStr(&cfg.Schedule.ReportDir, "AUTOBUY_SCHEDULE_REPORT_DIR")
	setDuration(&cfg.Schedule.RunTimeout, "AUTOBUY_SCHEDULE_RUN_TIMEOUT")
}

// Each helper only touches dst when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
