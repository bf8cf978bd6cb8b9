package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the broker.
type Config struct {
	HTTPPort      int      `json:"http_port" validate:"gte=0"`
	MetricsPort   int      `json:"metrics_port" validate:"gte=0"`
	DBPath        string   `json:"db_path" validate:"required"`
	EncryptionKey string   `json:"encryption_key" validate:"required,min=32"`
	HTTPTimeout   Duration `json:"http_timeout"`

	Auth struct {
		Issuer       string   `json:"issuer" validate:"required,url"`
		ClientID     string   `json:"client_id" validate:"required"`
		ClientSecret string   `json:"client_secret" validate:"required"`
		Scopes       []string `json:"scopes"`
	} `json:"auth"`

	Sweeper struct {
		Interval  Duration `json:"interval"`
		Retention Duration `json:"retention"`
	} `json:"sweeper"`
}

// Duration is a wrapper around time.Duration that implements JSON
// marshaling/unmarshaling
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads configuration from a file and overrides with environment
// variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in values the file and environment left unset.
func (c *Config) applyDefaults() {
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}
	if c.HTTPTimeout.Duration == 0 {
		c.HTTPTimeout = Duration{5 * time.Second}
	}
	if c.Sweeper.Interval.Duration == 0 {
		c.Sweeper.Interval = Duration{time.Minute}
	}
	if c.Sweeper.Retention.Duration == 0 {
		c.Sweeper.Retention = Duration{15 * time.Minute}
	}
}

// applyEnvOverrides overrides config fields with environment variables.
func (c *Config) applyEnvOverrides() error {
	// Auth overrides
	if v := os.Getenv("AUTH_ISSUER"); v != "" {
		c.Auth.Issuer = v
	}
	if v := os.Getenv("AUTH_CLIENT_ID"); v != "" {
		c.Auth.ClientID = v
	}
	if v := os.Getenv("AUTH_CLIENT_SECRET"); v != "" {
		c.Auth.ClientSecret = v
	}

	// HTTPPort overrides
	if v := os.Getenv("HTTP_PORT"); v != "" {
		var err error
		c.HTTPPort, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing HTTP_PORT: %w", err)
		}
	}

	// MetricsPort overrides
	if v := os.Getenv("METRICS_PORT"); v != "" {
		var err error
		c.MetricsPort, err = parseInt(v)
		if err != nil {
			return fmt.Errorf("parsing METRICS_PORT: %w", err)
		}
	}

	// DBPath overrides
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}

	// EncryptionKey overrides
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}

	// HTTPTimeout overrides
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing HTTP_TIMEOUT: %w", err)
		}
		c.HTTPTimeout = Duration{d}
	}

	// Sweeper overrides
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing SWEEP_INTERVAL: %w", err)
		}
		c.Sweeper.Interval = Duration{d}
	}
	if v := os.Getenv("SWEEP_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing SWEEP_RETENTION: %w", err)
		}
		c.Sweeper.Retention = Duration{d}
	}

	return nil
}

// validate checks the configuration for errors.
func (c *Config) validate() error {
	validate := validator.New()

	// Register custom validation for Duration
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if duration, ok := field.Interface().(Duration); ok {
			return duration.Duration
		}
		return nil
	}, Duration{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
