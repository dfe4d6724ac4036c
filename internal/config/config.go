package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"banking/internal/money"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	HTTPConfig struct {
		Port              int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
		ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
		RequestTimeout    time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
		CORSOrigins       []string      `env:"HTTP_CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	}

	DBConfig struct {
		Driver            string        `env:"DB_DRIVER" envDefault:"postgres"`
		Host              string        `env:"DB_HOST" envDefault:"localhost"`
		Port              int           `env:"DB_PORT" envDefault:"5432"`
		User              string        `env:"DB_USER" envDefault:"user"`
		Password          string        `env:"DB_PASSWORD" envDefault:"password"`
		Name              string        `env:"DB_NAME" envDefault:"banking_db"`
		SSLMode           string        `env:"DB_SSLMODE" envDefault:"disable"`
		SQLitePath        string        `env:"DB_SQLITE_PATH" envDefault:"banking.db"`
		ConnectRetries    int           `env:"DB_CONNECT_RETRIES" envDefault:"10"`
		ConnectRetryDelay time.Duration `env:"DB_CONNECT_RETRY_DELAY" envDefault:"5s"`
	}

	TokenConfig struct {
		Secret     string        `env:"TOKEN_SECRET,required,notEmpty,unset"`
		AccessTTL  time.Duration `env:"TOKEN_ACCESS_TTL" envDefault:"15m"`
		RefreshTTL time.Duration `env:"TOKEN_REFRESH_TTL" envDefault:"168h"`
	}

	LoanConfig struct {
		RepaymentMultiplier decimal.Decimal `env:"LOAN_REPAYMENT_MULTIPLIER" envDefault:"1.1"`
		RepaymentLimit      money.Amount    `env:"LOAN_REPAYMENT_LIMIT" envDefault:"100000.00"`
		AmountStep          int64           `env:"LOAN_AMOUNT_STEP" envDefault:"500"`
		PrincipalPerYear    int64           `env:"LOAN_PRINCIPAL_PER_YEAR" envDefault:"500"`
	}

	KafkaConfig struct {
		Enabled           bool   `env:"KAFKA_ENABLED" envDefault:"false"`
		BrokerURL         string `env:"KAFKA_BROKER_URL" envDefault:"localhost:9092"`
		LedgerEventsTopic string `env:"KAFKA_LEDGER_EVENTS_TOPIC" envDefault:"ledger_events"`
	}

	OutboxConfig struct {
		PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
		PollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT" envDefault:"500ms"`
		BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"10"`
		MaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"5"`
	}

	LogConfig struct {
		Level       string `env:"LOG_LEVEL" envDefault:"info"`
		Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
	}
}

// LoadConfig reads the optional env files (".env" when none are given) and
// then the process environment. Variables already set in the environment win.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DBConfig.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBConfig.Driver))
	}
	if c.HTTPConfig.RequestTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_REQUEST_TIMEOUT must be positive"))
	}
	if c.TokenConfig.AccessTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_ACCESS_TTL must be positive"))
	}
	if c.TokenConfig.RefreshTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_REFRESH_TTL must be positive"))
	}
	if !c.LoanConfig.RepaymentMultiplier.IsPositive() {
		errs = append(errs, errors.New("LOAN_REPAYMENT_MULTIPLIER must be positive"))
	}
	if !c.LoanConfig.RepaymentLimit.IsPositive() {
		errs = append(errs, errors.New("LOAN_REPAYMENT_LIMIT must be positive"))
	}
	if c.LoanConfig.AmountStep <= 0 {
		errs = append(errs, errors.New("LOAN_AMOUNT_STEP must be positive"))
	}
	if c.LoanConfig.PrincipalPerYear <= 0 {
		errs = append(errs, errors.New("LOAN_PRINCIPAL_PER_YEAR must be positive"))
	}
	if c.OutboxConfig.BatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPConfig.Port)
}

func (c *Config) GetDBConnectionString() string {
	if c.DBConfig.Driver == DriverSQLite {
		return c.DBConfig.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	if c.DBConfig.Driver == DriverSQLite {
		return "sqlite://" + c.DBConfig.SQLitePath
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaConfig.BrokerURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
