package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by the storage, admission and idempotency sections.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendValkey   = "valkey"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Temporal    TemporalConfig    `mapstructure:"temporal"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Log         LogConfig         `mapstructure:"log"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Admission   AdmissionConfig   `mapstructure:"admission"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Auth        AuthConfig        `mapstructure:"auth"`
	CORS        CORSConfig        `mapstructure:"cors"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    int           `mapstructure:"read_timeout"`
	WriteTimeout   int           `mapstructure:"write_timeout"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	BodyLimit      int           `mapstructure:"body_limit"`
}

// StorageConfig selects the repository and spatial index backends.
type StorageConfig struct {
	Repository string `mapstructure:"repository"`
	Index      string `mapstructure:"index"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	BatchSize int    `mapstructure:"batch_size"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	TempoAddr   string  `mapstructure:"tempo_addr"`
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LimitsConfig bounds query parameters. Defaults apply when a request omits
// the parameter; maxima clamp what the request asks for.
type LimitsConfig struct {
	MaxRadiusKm        float64 `mapstructure:"max_radius_km"`
	MaxNearLimit       int     `mapstructure:"max_near_limit"`
	MaxWithinLimit     int     `mapstructure:"max_within_limit"`
	MaxEligibleStores  int     `mapstructure:"max_eligible_stores"`
	DefaultRadiusKm    float64 `mapstructure:"default_radius_km"`
	DefaultNearLimit   int     `mapstructure:"default_near_limit"`
	DefaultWithinLimit int     `mapstructure:"default_within_limit"`
}

type AdmissionConfig struct {
	Backend      string        `mapstructure:"backend"`
	DefaultLimit int           `mapstructure:"default_limit"`
	StrictLimit  int           `mapstructure:"strict_limit"`
	Window       time.Duration `mapstructure:"window"`
}

type IdempotencyConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	Wait    time.Duration `mapstructure:"wait"`
}

type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

type CORSConfig struct {
	AllowOrigins string `mapstructure:"allow_origins"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: STOREMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("STOREMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Auth.APIKeys = splitKeys(cfg.Auth.APIKeys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.handler_timeout", 15*time.Second)
	v.SetDefault("server.body_limit", 1024*1024)
	v.SetDefault("storage.repository", BackendMemory)
	v.SetDefault("storage.index", BackendMemory)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "storemap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "storemap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "storemap-reindex")
	v.SetDefault("temporal.batch_size", 500)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("limits.max_radius_km", 20.0)
	v.SetDefault("limits.max_near_limit", 10)
	v.SetDefault("limits.max_within_limit", 500)
	v.SetDefault("limits.max_eligible_stores", 10)
	v.SetDefault("limits.default_radius_km", 5.0)
	v.SetDefault("limits.default_near_limit", 3)
	v.SetDefault("limits.default_within_limit", 200)
	v.SetDefault("admission.backend", BackendMemory)
	v.SetDefault("admission.default_limit", 120)
	v.SetDefault("admission.strict_limit", 20)
	v.SetDefault("admission.window", time.Minute)
	v.SetDefault("idempotency.backend", BackendMemory)
	v.SetDefault("idempotency.ttl", 10*time.Minute)
	v.SetDefault("idempotency.lock_ttl", 30*time.Second)
	v.SetDefault("idempotency.wait", 5*time.Second)
	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("cors.allow_origins", "*")
}

// splitKeys accepts both a YAML list and a comma-separated env value.
func splitKeys(in []string) []string {
	var out []string
	for _, s := range in {
		for _, k := range strings.Split(s, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.HandlerTimeout <= 0 {
		errs = append(errs, "server.handler_timeout must be positive")
	}
	if c.Server.BodyLimit <= 0 {
		errs = append(errs, "server.body_limit must be positive")
	}

	if !oneOf(c.Storage.Repository, BackendMemory, BackendPostgres) {
		errs = append(errs, fmt.Sprintf("storage.repository must be memory or postgres, got %q", c.Storage.Repository))
	}
	if !oneOf(c.Storage.Index, BackendMemory, BackendPostgres) {
		errs = append(errs, fmt.Sprintf("storage.index must be memory or postgres, got %q", c.Storage.Index))
	}
	if c.UsesPostgres() {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats.enabled")
	}
	if c.UsesValkey() && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if c.Limits.MaxRadiusKm <= 0 {
		errs = append(errs, "limits.max_radius_km must be positive")
	}
	if c.Limits.MaxNearLimit <= 0 || c.Limits.MaxWithinLimit <= 0 || c.Limits.MaxEligibleStores <= 0 {
		errs = append(errs, "limits.max_near_limit, max_within_limit and max_eligible_stores must be positive")
	}
	if c.Limits.DefaultRadiusKm <= 0 || c.Limits.DefaultNearLimit <= 0 || c.Limits.DefaultWithinLimit <= 0 {
		errs = append(errs, "limits defaults must be positive")
	}

	if !oneOf(c.Admission.Backend, BackendMemory, BackendValkey) {
		errs = append(errs, fmt.Sprintf("admission.backend must be memory or valkey, got %q", c.Admission.Backend))
	}
	if c.Admission.DefaultLimit <= 0 || c.Admission.StrictLimit <= 0 {
		errs = append(errs, "admission limits must be positive")
	}
	if c.Admission.Window <= 0 {
		errs = append(errs, "admission.window must be positive")
	}

	if !oneOf(c.Idempotency.Backend, BackendMemory, BackendValkey) {
		errs = append(errs, fmt.Sprintf("idempotency.backend must be memory or valkey, got %q", c.Idempotency.Backend))
	}
	if c.Idempotency.TTL <= 0 || c.Idempotency.LockTTL <= 0 {
		errs = append(errs, "idempotency.ttl and idempotency.lock_ttl must be positive")
	}

	if c.Telemetry.Enabled && (c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1) {
		errs = append(errs, "telemetry.sample_ratio must be within 0-1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// UsesPostgres reports whether any storage backend needs the database.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Repository == BackendPostgres || c.Storage.Index == BackendPostgres
}

// UsesValkey reports whether any gateway backend needs valkey.
func (c *Config) UsesValkey() bool {
	return c.Admission.Backend == BackendValkey || c.Idempotency.Backend == BackendValkey
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
