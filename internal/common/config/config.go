package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// Winner uniqueness modes.
	UniquenessTicketPrize   = "ticket_prize"
	UniquenessPrizePosition = "prize_position"

	// MaxMonthlyQuota is the capacity of the 4-digit ticket sequence.
	MaxMonthlyQuota = 10000
)

type Config struct {
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	LogJSON     bool   `env:"LOG_JSON" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"sorteos-backend"`

	Server struct {
		Port            int           `env:"PORT" envDefault:"8080"`
		Origins         []string      `env:"ORIGIN" envSeparator:"," envDefault:"http://localhost:3000"`
		ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		StorefrontURL   string        `env:"STOREFRONT_URL" envDefault:"http://localhost:3000"`
	}

	Database DatabaseConfig

	Redis RedisConfig

	Auth struct {
		JWTSecret string        `env:"JWT_SECRET,required"`
		TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"168h"`
	}

	Tickets struct {
		MonthlyQuota int `env:"TICKET_MONTHLY_QUOTA" envDefault:"1000"`
		BatchSize    int `env:"TICKET_BATCH_SIZE" envDefault:"100"`
	}

	Draw struct {
		WinnerUniqueness string        `env:"WINNER_UNIQUENESS" envDefault:"ticket_prize"`
		LockTTL          time.Duration `env:"DRAW_LOCK_TTL" envDefault:"30s"`
		EnforceSchedule  bool          `env:"DRAW_ENFORCE_SCHEDULE" envDefault:"true"`
		AutoDraw         bool          `env:"AUTO_DRAW_ENABLED" envDefault:"false"`
		AutoDrawInterval time.Duration `env:"AUTO_DRAW_INTERVAL" envDefault:"1m"`
	}

	Payments struct {
		StreamEnabled bool   `env:"PAYMENT_STREAM_ENABLED" envDefault:"false"`
		StreamKey     string `env:"PAYMENT_STREAM_KEY" envDefault:"payments:events"`
		ConsumerGroup string `env:"PAYMENT_CONSUMER_GROUP" envDefault:"sorteos_payment_consumers"`
		ConsumerName  string `env:"PAYMENT_CONSUMER_NAME" envDefault:"sorteos_worker_1"`
	}

	Cache struct {
		WinnersTTL time.Duration `env:"WINNERS_CACHE_TTL" envDefault:"5m"`
		LRUSize    int           `env:"LRU_CACHE_SIZE" envDefault:"1024"`
	}

	Telemetry struct {
		Enabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`
		Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
		Insecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	}
}

type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"postgres"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD" envDefault:""`
	Name            string        `env:"DB_NAME" envDefault:"sorteo"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"sorteo.db"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; in production variables come from the environment
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom parses config from an explicit variable map instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Tickets.MonthlyQuota < 1 || c.Tickets.MonthlyQuota > MaxMonthlyQuota {
		return fmt.Errorf("TICKET_MONTHLY_QUOTA must be between 1 and %d, got %d", MaxMonthlyQuota, c.Tickets.MonthlyQuota)
	}
	if c.Tickets.BatchSize < 1 {
		return fmt.Errorf("TICKET_BATCH_SIZE must be positive")
	}

	switch c.Draw.WinnerUniqueness {
	case UniquenessTicketPrize, UniquenessPrizePosition:
	default:
		return fmt.Errorf("unsupported WINNER_UNIQUENESS %q", c.Draw.WinnerUniqueness)
	}

	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.Payments.StreamEnabled && !c.Redis.Enabled {
		return fmt.Errorf("PAYMENT_STREAM_ENABLED requires REDIS_ENABLED")
	}
	return nil
}
