package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	Log        LogConfig       `mapstructure:"log"`
	Auth       AuthConfig      `mapstructure:"auth"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Gateway    GatewayConfig   `mapstructure:"gateway"`
	Pricing    PricingConfig   `mapstructure:"pricing"`
	Scheduler  SchedulerConfig `mapstructure:"scheduler"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	ReportsTopic   string   `mapstructure:"reports_topic"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

// GatewayConfig holds the SMS provider settings. Credentials are checked per
// send attempt, not at load time.
type GatewayConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	SendPath           string        `mapstructure:"send_path"`
	ClientID           string        `mapstructure:"client_id"`
	ClientSecret       string        `mapstructure:"client_secret"`
	Sender             string        `mapstructure:"sender"`
	CountryCode        string        `mapstructure:"country_code"`
	TrunkPrefix        string        `mapstructure:"trunk_prefix"`
	RegisteredDelivery bool          `mapstructure:"registered_delivery"`
	TimeoutMs          int           `mapstructure:"timeout_ms"`
	Breaker            BreakerConfig `mapstructure:"breaker"`
}

// PricingConfig: amounts are in minor currency units (e.g. pesewas).
type PricingConfig struct {
	PerSegment int64  `mapstructure:"per_segment"`
	Currency   string `mapstructure:"currency"`
}

type SchedulerConfig struct {
	Cron     string        `mapstructure:"cron"`
	Timezone string        `mapstructure:"timezone"`
	LockKey  string        `mapstructure:"lock_key"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

// DefaultPath is merged when no config path is given and the file exists.
const DefaultPath = "config.yaml"

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (CHURCHSMS_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// env override (CHURCHSMS_GATEWAY_CLIENT_ID -> gateway.client_id)
	v.SetEnvPrefix("CHURCHSMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural settings only.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr must be set"))
	}
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		errs = append(errs, errors.New("gateway.base_url must be set"))
	}
	if c.Gateway.CountryCode == "" || strings.Trim(c.Gateway.CountryCode, "0123456789") != "" {
		errs = append(errs, fmt.Errorf("gateway.country_code must be digits, got %q", c.Gateway.CountryCode))
	}
	if c.Pricing.PerSegment < 0 {
		errs = append(errs, fmt.Errorf("pricing.per_segment must be >= 0, got %d", c.Pricing.PerSegment))
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the scheduler timezone; Validate guarantees it loads.
func (c SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
