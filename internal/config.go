package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Deduction     DeductionConfig     `mapstructure:"deduction"`
	Accounting    AccountingConfig    `mapstructure:"accounting"`
	Device        DeviceConfig        `mapstructure:"device"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

// DeductionConfig seeds the global deduction threshold the first time it is read.
type DeductionConfig struct {
	DefaultMaxAmount  string `mapstructure:"default_max_amount"`
	DefaultPercentage string `mapstructure:"default_percentage"`
	Currency          string `mapstructure:"currency"`
}

type AccountingConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	RealmID           string        `mapstructure:"realm_id"`
	AccessToken       string        `mapstructure:"access_token"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

type DeviceConfig struct {
	GatewayURL         string        `mapstructure:"gateway_url"`
	ConnectionTimeout  time.Duration `mapstructure:"connection_timeout"`
	MinIntervalMinutes int           `mapstructure:"min_interval_minutes"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
}

type SyncConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	CleanupDays       int           `mapstructure:"cleanup_days"`
	BatchSize         int           `mapstructure:"batch_size"`
	ScheduledInterval time.Duration `mapstructure:"scheduled_interval"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"`
	PendingInterval   time.Duration `mapstructure:"pending_interval"`
	DeviceInterval    time.Duration `mapstructure:"device_interval"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration for container deployments where
// no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Deduction: DeductionConfig{
			DefaultMaxAmount:  getEnv("DEDUCTION_DEFAULT_MAX_AMOUNT", "5000.00"),
			DefaultPercentage: getEnv("DEDUCTION_DEFAULT_PERCENTAGE", "70"),
			Currency:          getEnv("DEDUCTION_CURRENCY", "USD"),
		},
		Accounting: AccountingConfig{
			BaseURL:           getEnv("ACCOUNTING_BASE_URL", ""),
			RealmID:           getEnv("ACCOUNTING_REALM_ID", ""),
			AccessToken:       getEnv("ACCOUNTING_ACCESS_TOKEN", ""),
			Timeout:           getEnvAsDuration("ACCOUNTING_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvAsFloat("ACCOUNTING_RPS", 5),
			Burst:             getEnvAsInt("ACCOUNTING_BURST", 5),
		},
		Device: DeviceConfig{
			GatewayURL:         getEnv("DEVICE_GATEWAY_URL", ""),
			ConnectionTimeout:  getEnvAsDuration("DEVICE_CONNECTION_TIMEOUT", 10*time.Second),
			MinIntervalMinutes: getEnvAsInt("DEVICE_MIN_INTERVAL_MINUTES", 15),
			LockTTL:            getEnvAsDuration("DEVICE_LOCK_TTL", 5*time.Minute),
		},
		Sync: SyncConfig{
			MaxRetries:        getEnvAsInt("SYNC_MAX_RETRIES", 3),
			RetryBaseDelay:    getEnvAsDuration("SYNC_RETRY_BASE_DELAY", 5*time.Minute),
			CleanupDays:       getEnvAsInt("SYNC_CLEANUP_DAYS", 90),
			BatchSize:         getEnvAsInt("SYNC_BATCH_SIZE", 50),
			ScheduledInterval: getEnvAsDuration("SYNC_SCHEDULED_INTERVAL", time.Hour),
			RetryInterval:     getEnvAsDuration("SYNC_RETRY_INTERVAL", 10*time.Minute),
			PendingInterval:   getEnvAsDuration("SYNC_PENDING_INTERVAL", 30*time.Minute),
			DeviceInterval:    getEnvAsDuration("SYNC_DEVICE_INTERVAL", 15*time.Minute),
			CleanupInterval:   getEnvAsDuration("SYNC_CLEANUP_INTERVAL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnv("KAFKA_ENABLED", "false") == "true",
			Brokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "payroll-admin.events"),
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Deduction.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("deduction config: %v", err))
	}

	if err := c.Accounting.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("accounting config: %v", err))
	}

	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("sync config: %v", err))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, "kafka config: brokers are required when kafka is enabled")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *DeductionConfig) Validate() error {
	if _, err := c.MaxAmount(); err != nil {
		return fmt.Errorf("invalid default_max_amount: %w", err)
	}
	if _, err := c.Percentage(); err != nil {
		return fmt.Errorf("invalid default_percentage: %w", err)
	}
	return nil
}

// MaxAmount falls back to 5000.00 when unset.
func (c *DeductionConfig) MaxAmount() (decimal.Decimal, error) {
	if c.DefaultMaxAmount == "" {
		return decimal.NewFromInt(5000), nil
	}
	return decimal.NewFromString(c.DefaultMaxAmount)
}

// Percentage falls back to 70 when unset.
func (c *DeductionConfig) Percentage() (decimal.Decimal, error) {
	if c.DefaultPercentage == "" {
		return decimal.NewFromInt(70), nil
	}
	return decimal.NewFromString(c.DefaultPercentage)
}

func (c *AccountingConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	return nil
}

func (c *SyncConfig) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max_retries cannot be negative")
	}
	if c.CleanupDays < 0 {
		return errors.New("cleanup_days cannot be negative")
	}
	return nil
}

// MinInterval is the window during which a device that was just synced is skipped.
func (c *DeviceConfig) MinInterval() time.Duration {
	if c.MinIntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.MinIntervalMinutes) * time.Minute
}
