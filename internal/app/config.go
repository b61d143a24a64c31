package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/merch-store/internal/domain/cart"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Storage      string `default:"postgres" usage:"Storage backend: postgres or memory"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com)" flag:"image-base-url"`
	Shop         ShopConfig
	Session      SessionConfig
	Redis        RedisConfig
	Janitor      JanitorConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// ShopConfig holds storefront pricing and order settings.
type ShopConfig struct {
	Currency              string `default:"€" usage:"Currency symbol shown with prices"`
	FreeShippingThreshold string `default:"100.00" usage:"Subtotal from which shipping is free" flag:"free-shipping-threshold"`
	ShippingCost          string `default:"9.99" usage:"Flat shipping cost below the threshold" flag:"shipping-cost"`
	OrderPrefix           string `default:"RST" usage:"Order number prefix" flag:"order-prefix"`
	DebugEndpoints        bool   `default:"false" usage:"Expose /api/debug/session" flag:"debug-endpoints"`
}

// Pricing parses the decimal settings. LoadConfig has already validated them.
func (c ShopConfig) Pricing() (cart.Pricing, error) {
	threshold, err := decimal.NewFromString(c.FreeShippingThreshold)
	if err != nil {
		return cart.Pricing{}, errors.Wrapf(err, "parse free shipping threshold %q", c.FreeShippingThreshold)
	}
	cost, err := decimal.NewFromString(c.ShippingCost)
	if err != nil {
		return cart.Pricing{}, errors.Wrapf(err, "parse shipping cost %q", c.ShippingCost)
	}
	if threshold.IsNegative() || cost.IsNegative() {
		return cart.Pricing{}, errors.New("shipping amounts must not be negative")
	}
	return cart.Pricing{
		Currency:              c.Currency,
		FreeShippingThreshold: threshold,
		ShippingCost:          cost,
	}, nil
}

// SessionConfig controls the session cookie.
type SessionConfig struct {
	CookieName string        `default:"session_id" usage:"Session cookie name" flag:"cookie-name"`
	MaxAge     time.Duration `default:"168h" usage:"Session cookie lifetime" flag:"cookie-max-age"`
	Secure     bool          `default:"false" usage:"Send the session cookie over HTTPS only" flag:"cookie-secure"`
}

// RedisConfig controls the catalog cache. An empty URL disables it.
type RedisConfig struct {
	URL       string        `default:"" usage:"Redis URL for the catalog cache (redis://host:6379/0)" flag:"redis-url"`
	TTL       time.Duration `default:"5m" usage:"Catalog cache TTL" flag:"redis-ttl"`
	Namespace string        `default:"shop" usage:"Cache key prefix" flag:"redis-namespace"`
}

// JanitorConfig controls stale cart cleanup. Zero retention disables it.
type JanitorConfig struct {
	Schedule  string        `default:"@hourly" usage:"Cron schedule of the stale cart sweep" flag:"janitor-schedule"`
	Retention time.Duration `default:"0s" usage:"Delete carts untouched for longer than this" flag:"janitor-retention"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/merch-store/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q: want %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}
	if _, err := c.Shop.Pricing(); err != nil {
		return errors.Wrap(err, "shop")
	}
	if c.Session.CookieName == "" {
		return errors.New("session cookie name must not be empty")
	}
	if c.Janitor.Retention < 0 {
		return errors.New("janitor retention must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
