package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Bands      BandsConfig      `mapstructure:"bands"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Providers  []ProviderConfig `mapstructure:"providers"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr       string `mapstructure:"addr"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
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
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

// EscalationConfig drives the timed balance growth. All windows are plain
// durations so tests can run with compressed clocks.
type EscalationConfig struct {
	Cadence      time.Duration `mapstructure:"cadence"`
	WarningLead  time.Duration `mapstructure:"warning_lead"`
	Increment    int64         `mapstructure:"increment"`
	RecentWindow time.Duration `mapstructure:"recent_window"`
}

type PaymentConfig struct {
	Minimum int64 `mapstructure:"minimum"`
}

type RetentionConfig struct {
	DebtKeep    int `mapstructure:"debt_keep"`
	PaymentKeep int `mapstructure:"payment_keep"`
}

// BandsConfig holds the upper bound of each severity band.
// Balances at or below Pending are never notified.
type BandsConfig struct {
	Pending  int64 `mapstructure:"pending"`
	Elevated int64 `mapstructure:"elevated"`
	Critical int64 `mapstructure:"critical"`
}

type NotifierConfig struct {
	Mode        string `mapstructure:"mode"`  // relay | outbox
	Topic       string `mapstructure:"topic"` // kafka topic for outbox mode
	From        string `mapstructure:"from"`
	DefaultTo   string `mapstructure:"default_to"` // fallback when an account has no email
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type ProviderConfig struct {
	Name      string        `mapstructure:"name"`
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	SendPath  string        `mapstructure:"send_path"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (DEBT_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (DEBT_*)
	v.SetEnvPrefix("DEBT")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
