package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHOREPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"CHOREPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHOREPAY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CHOREPAY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CHOREPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CHOREPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CHOREPAY_DB_DSN"`
	Driver string `envconfig:"CHOREPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHOREPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"CHOREPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHOREPAY_DB_USER"`
	LegacyPassword string `envconfig:"CHOREPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHOREPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHOREPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHOREPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHOREPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHOREPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHOREPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver targets SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CHOREPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHOREPAY_REDIS_ADDR"`
	Password     string        `envconfig:"CHOREPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHOREPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHOREPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHOREPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHOREPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHOREPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHOREPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CHOREPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CHOREPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CHOREPAY_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CHOREPAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CHOREPAY_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig bounds how hard the transaction executor retries optimistic conflicts.
type LedgerConfig struct {
	TxMaxAttempts    int           `envconfig:"CHOREPAY_LEDGER_TX_MAX_ATTEMPTS" default:"5"`
	TxRetryBaseDelay time.Duration `envconfig:"CHOREPAY_LEDGER_TX_RETRY_BASE_DELAY" default:"20ms"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CHOREPAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"CHOREPAY_PUBSUB_NOTIFICATION_TOPIC" default:"chorepay-notification-events"`
	LedgerTopic       string `envconfig:"CHOREPAY_PUBSUB_LEDGER_TOPIC" default:"chorepay-ledger-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CHOREPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CHOREPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CHOREPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// RateLimitConfig throttles mutating API calls. A zero limit disables that counter.
type RateLimitConfig struct {
	Window    time.Duration `envconfig:"CHOREPAY_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit   int           `envconfig:"CHOREPAY_RATE_LIMIT_IP" default:"120"`
	UserLimit int           `envconfig:"CHOREPAY_RATE_LIMIT_USER" default:"60"`
}

// CronConfig drives the maintenance worker cadence and retention windows.
type CronConfig struct {
	Interval             time.Duration `envconfig:"CHOREPAY_CRON_INTERVAL" default:"1h"`
	JobTimeout           time.Duration `envconfig:"CHOREPAY_CRON_JOB_TIMEOUT" default:"5m"`
	OutboxRetentionDays  int           `envconfig:"CHOREPAY_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays     int           `envconfig:"CHOREPAY_CRON_DLQ_RETENTION_DAYS" default:"90"`
	WithdrawalReviewDays int           `envconfig:"CHOREPAY_CRON_WITHDRAWAL_REVIEW_DAYS" default:"7"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = DefaultSQLiteDSN
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
