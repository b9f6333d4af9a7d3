// Package config loads the saga configuration.
//
// Values are layered, lowest priority first:
//
//  1. built-in defaults (Default)
//  2. an optional YAML file
//  3. environment variables
//
// Environment variable names follow the pattern:
//
//	{Prefix}{SECTION}_{FIELD}
//
// with the default prefix "CHOREO_":
//
//	CHOREO_BUS_MAX_CONCURRENCY=16
//	CHOREO_PAYMENT_APPROVAL_RATE=0.5
//	CHOREO_REDIS_ADDR=localhost:6379
//	CHOREO_LOG_LEVEL=debug
//
// Only variables that are set override the layers below.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPrefix prefixes every environment variable.
const DefaultPrefix = "CHOREO_"

// Config is the full saga configuration.
type Config struct {
	Bus       Bus       `yaml:"bus" envPrefix:"BUS_"`
	Inventory Inventory `yaml:"inventory" envPrefix:"INVENTORY_"`
	Payment   Payment   `yaml:"payment" envPrefix:"PAYMENT_"`
	Redis     Redis     `yaml:"redis" envPrefix:"REDIS_"`
	Metrics   Metrics   `yaml:"metrics" envPrefix:"METRICS_"`
	Log       Log       `yaml:"log" envPrefix:"LOG_"`
}

// Bus configures dispatch.
type Bus struct {
	// MaxConcurrency bounds running handlers. Zero means unbounded.
	MaxConcurrency int64 `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
	// HandlerTimeout bounds each handler call. Zero disables it.
	HandlerTimeout time.Duration `yaml:"handler_timeout" env:"HANDLER_TIMEOUT"`
	// LogDeliveries logs every delivery at debug level.
	LogDeliveries bool `yaml:"log_deliveries" env:"LOG_DELIVERIES"`
	// DrainTimeout is how long the demo waits for sagas to settle.
	DrainTimeout time.Duration `yaml:"drain_timeout" env:"DRAIN_TIMEOUT"`
}

// Inventory configures the inventory service.
type Inventory struct {
	ProductID string `yaml:"product_id" env:"PRODUCT_ID"`
	Capacity  int    `yaml:"capacity" env:"CAPACITY"`
}

// Payment configures the payment service.
type Payment struct {
	// ApprovalRate is the probability a payment is approved.
	ApprovalRate float64 `yaml:"approval_rate" env:"APPROVAL_RATE"`
	// Amount charged per order in minor units.
	Amount int64 `yaml:"amount" env:"AMOUNT"`
}

// Redis selects the Redis reservation store when Addr is set.
type Redis struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// Enabled reports whether a Redis address is configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

// Metrics configures the prometheus endpoint. Empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// Log configures logging.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or text.
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Bus: Bus{
			DrainTimeout: 5 * time.Second,
		},
		Inventory: Inventory{
			ProductID: "product-1",
			Capacity:  5,
		},
		Payment: Payment{
			ApprovalRate: 0.8,
			Amount:       4200,
		},
		Redis: Redis{
			KeyPrefix: "choreo:reserved:",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.Bus.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("bus.max_concurrency must not be negative, got %d", c.Bus.MaxConcurrency))
	}
	if c.Bus.HandlerTimeout < 0 {
		errs = append(errs, fmt.Errorf("bus.handler_timeout must not be negative, got %s", c.Bus.HandlerTimeout))
	}
	if c.Inventory.Capacity < 0 {
		errs = append(errs, fmt.Errorf("inventory.capacity must not be negative, got %d", c.Inventory.Capacity))
	}
	if c.Payment.ApprovalRate < 0 || c.Payment.ApprovalRate > 1 {
		errs = append(errs, fmt.Errorf("payment.approval_rate must be within [0, 1], got %g", c.Payment.ApprovalRate))
	}
	if c.Payment.Amount < 0 {
		errs = append(errs, fmt.Errorf("payment.amount must not be negative, got %d", c.Payment.Amount))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Loader reads configuration from a file and the environment.
type Loader struct {
	// Prefix for environment variable names. Default: "CHOREO_".
	Prefix string

	// environ replaces the process environment in tests.
	environ map[string]string
}

func (l Loader) prefix() string {
	if l.Prefix == "" {
		return DefaultPrefix
	}
	return l.Prefix
}

func (l Loader) options() env.Options {
	opts := env.Options{Prefix: l.prefix()}
	if l.environ != nil {
		opts.Environment = l.environ
	}
	return opts
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func (l Loader) Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, l.options()); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Keys returns the environment variable names Load checks.
func (l Loader) Keys() []string {
	cfg := Default()
	params, err := env.GetFieldParamsWithOptions(&cfg, l.options())
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(params))
	for _, p := range params {
		keys = append(keys, p.Key)
	}
	return keys
}

// Load uses the default Loader.
func Load(path string) (Config, error) {
	return Loader{}.Load(path)
}

// Keys uses the default Loader.
func Keys() []string {
	return Loader{}.Keys()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}
