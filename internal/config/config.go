// Package config loads the service configuration from TOML, .env and
// AUTOBUY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guarzo/mtgautobuy/internal/ips"
	"github.com/guarzo/mtgautobuy/internal/seasonality"
)

// Config is the root configuration.
type Config struct {
	// Mode is once (score and exit) or daemon (run on schedule).
	Mode           string `toml:"mode"`
	LogLevel       string `toml:"log_level"`
	LogDevelopment bool   `toml:"log_development"`

	Database     DatabaseConfig     `toml:"database"`
	Redis        RedisConfig        `toml:"redis"`
	Cache        CacheConfig        `toml:"cache"`
	TCGPlayer    TCGPlayerConfig    `toml:"tcgplayer"`
	Storefront   StorefrontConfig   `toml:"storefront"`
	Scryfall     ScryfallConfig     `toml:"scryfall"`
	Substitution SubstitutionConfig `toml:"substitution"`
	Seasonality  SeasonalityConfig  `toml:"seasonality"`
	IPS          ips.Weights        `toml:"ips"`
	Inventory    InventoryConfig    `toml:"inventory"`
	Schedule     ScheduleConfig     `toml:"schedule"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	MaxConns      int    `toml:"max_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When disabled the service
// uses the in-process cache.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// CacheConfig sizes the in-process cache and sets entry lifetimes.
type CacheConfig struct {
	Capacity        int      `toml:"capacity"`
	DefaultTTL      Duration `toml:"default_ttl"`
	PriceHistoryTTL Duration `toml:"price_history_ttl"`
}

// TCGPlayerConfig configures the TCGPlayer client.
type TCGPlayerConfig struct {
	Enabled              bool     `toml:"enabled"`
	BaseURL              string   `toml:"base_url"`
	APIKey               string   `toml:"api_key"`
	CategoryID           int      `toml:"category_id"`
	MaxRequestsPerMinute int      `toml:"max_requests_per_minute"`
	Timeout              Duration `toml:"timeout"`
	ProductCacheTTL      Duration `toml:"product_cache_ttl"`
	ExcludeHeavilyPlayed bool     `toml:"exclude_heavily_played"`
}

// StorefrontConfig configures the HTML storefront client.
type StorefrontConfig struct {
	Enabled              bool     `toml:"enabled"`
	Name                 string   `toml:"name"`
	BaseURL              string   `toml:"base_url"`
	SearchPath           string   `toml:"search_path"`
	SellerRating         float64  `toml:"seller_rating"`
	ShippingBase         float64  `toml:"shipping_base"`
	FreeShippingAt       float64  `toml:"free_shipping_at"`
	RequestInterval      Duration `toml:"request_interval"`
	Timeout              Duration `toml:"timeout"`
	ExcludeHeavilyPlayed bool     `toml:"exclude_heavily_played"`
}

// ScryfallConfig configures the card resolver.
type ScryfallConfig struct {
	BaseURL         string   `toml:"base_url"`
	RequestInterval Duration `toml:"request_interval"`
	Timeout         Duration `toml:"timeout"`
}

// SubstitutionConfig points at an optional file of groups to seed into the
// registry at startup.
type SubstitutionConfig struct {
	GroupsFile string `toml:"groups_file"`
}

// SeasonalityConfig locates the event calendar.
type SeasonalityConfig struct {
	EventsFile    string `toml:"events_file"`
	CombinePolicy string `toml:"combine_policy"`
}

// InventoryConfig selects the stock level source.
type InventoryConfig struct {
	Source  string `toml:"source"` // postgres or csv
	View    string `toml:"view"`
	CSVPath string `toml:"csv_path"`
}

// ScheduleConfig controls daemon mode.
type ScheduleConfig struct {
	// Cron uses six fields, seconds first.
	Cron       string   `toml:"cron"`
	ReportDir  string   `toml:"report_dir"`
	RunTimeout Duration `toml:"run_timeout"`
}

// Duration wraps time.Duration so TOML strings like "5m" decode.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with working defaults.
func Defaults() Config {
	return Config{
		Mode:     "once",
		LogLevel: "info",
		Database: DatabaseConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "mtg",
			User:          "postgres",
			SSLMode:       "disable",
			MaxConns:      5,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "autobuy",
		},
		Cache: CacheConfig{
			Capacity:        10000,
			DefaultTTL:      Duration{24 * time.Hour},
			PriceHistoryTTL: Duration{30 * 24 * time.Hour},
		},
		TCGPlayer: TCGPlayerConfig{
			Enabled:              true,
			BaseURL:              "https://api.tcgplayer.com",
			CategoryID:           1,
			MaxRequestsPerMinute: 300,
			Timeout:              Duration{30 * time.Second},
			ProductCacheTTL:      Duration{7 * 24 * time.Hour},
		},
		Storefront: StorefrontConfig{
			SearchPath:      "/search",
			SellerRating:    0.95,
			RequestInterval: Duration{2 * time.Second},
			Timeout:         Duration{20 * time.Second},
		},
		Scryfall: ScryfallConfig{
			BaseURL:         "https://api.scryfall.com",
			RequestInterval: Duration{100 * time.Millisecond},
			Timeout:         Duration{30 * time.Second},
		},
		Seasonality: SeasonalityConfig{
			CombinePolicy: string(seasonality.Strongest),
		},
		IPS: ips.DefaultWeights(),
		Inventory: InventoryConfig{
			Source: "postgres",
			View:   "autobuy_stock_levels",
		},
		Schedule: ScheduleConfig{
			Cron:       "0 0 6 * * *",
			ReportDir:  "reports",
			RunTimeout: Duration{30 * time.Minute},
		},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate returns every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	switch c.Mode {
	case "once", "daemon":
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: once, daemon)", c.Mode))
	}

	if c.Database.Enabled && strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}
	if c.Cache.Capacity < 0 {
		errs = append(errs, "cache: capacity must be >= 0")
	}

	if c.TCGPlayer.Enabled {
		if c.TCGPlayer.APIKey == "" {
			errs = append(errs, "tcgplayer: api_key is required when enabled (or set AUTOBUY_TCGPLAYER_API_KEY)")
		}
		if c.TCGPlayer.MaxRequestsPerMinute < 1 {
			errs = append(errs, "tcgplayer: max_requests_per_minute must be >= 1")
		}
	}
	if c.Storefront.Enabled && c.Storefront.BaseURL == "" {
		errs = append(errs, "storefront: base_url is required when enabled")
	}
	if c.Storefront.SellerRating < 0 || c.Storefront.SellerRating > 1 {
		errs = append(errs, "storefront: seller_rating must be within [0,1]")
	}

	if _, err := seasonality.ParseCombinePolicy(c.Seasonality.CombinePolicy); err != nil {
		errs = append(errs, "seasonality: "+err.Error())
	}

	w := c.IPS
	if w.Baseline < 0 || w.Baseline >= 1 {
		errs = append(errs, "ips: baseline must be within [0,1)")
	}
	if w.StockWeight < 0 {
		errs = append(errs, "ips: stock_weight must be >= 0")
	}
	if w.SubstitutionDiscount <= 0 || w.SubstitutionDiscount > 1 {
		errs = append(errs, "ips: substitution_discount must be within (0,1]")
	}
	if w.MinSignal <= 0 || w.MaxSignal < w.MinSignal {
		errs = append(errs, "ips: need 0 < min_signal <= max_signal")
	}
	if w.MinSignal > 1 || w.MaxSignal < 1 {
		errs = append(errs, "ips: the neutral market signal 1.0 must lie within [min_signal, max_signal]")
	}
	if w.ScarcityScale < 0 {
		errs = append(errs, "ips: scarcity_scale must be >= 0")
	}

	switch c.Inventory.Source {
	case "postgres":
		if !c.Database.Enabled {
			errs = append(errs, "inventory: source postgres requires database.enabled")
		}
	case "csv":
		if c.Inventory.CSVPath == "" {
			errs = append(errs, "inventory: csv_path is required for source csv")
		}
	default:
		errs = append(errs, fmt.Sprintf("inventory: unknown source %q (valid: postgres, csv)", c.Inventory.Source))
	}

	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.Schedule.Cron); err != nil {
		errs = append(errs, fmt.Sprintf("schedule: invalid cron %q: %v", c.Schedule.Cron, err))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
