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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	if err := cfg.Stripe.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STAYBOOK_APP_ENV" required:"true"`
	Port         string `envconfig:"STAYBOOK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STAYBOOK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STAYBOOK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STAYBOOK_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STAYBOOK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"STAYBOOK_DB_DSN"`
	SQLitePath string `envconfig:"STAYBOOK_DB_SQLITE_PATH" default:"staybook.db"`

	LegacyHost     string `envconfig:"STAYBOOK_DB_HOST"`
	LegacyPort     int    `envconfig:"STAYBOOK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STAYBOOK_DB_USER"`
	LegacyPassword string `envconfig:"STAYBOOK_DB_PASSWORD"`
	LegacyName     string `envconfig:"STAYBOOK_DB_NAME"`
	LegacySSLMode  string `envconfig:"STAYBOOK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STAYBOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STAYBOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STAYBOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STAYBOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	UseSQLite bool `ignored:"true"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STAYBOOK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STAYBOOK_REDIS_ADDR"`
	Password     string        `envconfig:"STAYBOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"STAYBOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STAYBOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STAYBOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STAYBOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STAYBOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STAYBOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STAYBOOK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STAYBOOK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STAYBOOK_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STAYBOOK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STAYBOOK_AUTO_MIGRATE" default:"false"`
}

// StripeConfig carries the processor credentials plus the redirect targets handed to hosted flows.
type StripeConfig struct {
	APIKey              string        `envconfig:"STAYBOOK_STRIPE_API_KEY"`
	Secret              string        `envconfig:"STAYBOOK_STRIPE_SECRET"`
	Env                 string        `envconfig:"STAYBOOK_STRIPE_ENV" default:"test"`
	OnboardingRedirect  string        `envconfig:"STAYBOOK_STRIPE_ONBOARDING_REDIRECT_URL"`
	SettingsRedirect    string        `envconfig:"STAYBOOK_STRIPE_SETTINGS_REDIRECT_URL"`
	SuccessURL          string        `envconfig:"STAYBOOK_STRIPE_SUCCESS_URL"`
	CancelURL           string        `envconfig:"STAYBOOK_STRIPE_CANCEL_URL"`
	Currency            string        `envconfig:"STAYBOOK_STRIPE_CURRENCY" default:"usd"`
	PlatformFeePercent  int64         `envconfig:"STAYBOOK_STRIPE_PLATFORM_FEE_PERCENT" default:"20"`
	ApplyApplicationFee bool          `envconfig:"STAYBOOK_STRIPE_APPLY_APPLICATION_FEE" default:"false"`
	CallTimeout         time.Duration `envconfig:"STAYBOOK_STRIPE_CALL_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (s StripeConfig) validate() error {
	if s.PlatformFeePercent < 0 || s.PlatformFeePercent > 100 {
		return fmt.Errorf("%s must be between 0 and 100", EnvStripeFeePercent)
	}
	if s.CallTimeout < 0 {
		return fmt.Errorf("%s must not be negative", EnvStripeCallTimeout)
	}
	return nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"STAYBOOK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"STAYBOOK_PUBSUB_ORDERS_TOPIC" default:"staybook-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STAYBOOK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STAYBOOK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STAYBOOK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"STAYBOOK_CRON_INTERVAL" default:"5m"`
	PendingSessionAge time.Duration `envconfig:"STAYBOOK_CRON_PENDING_SESSION_AGE" default:"30m"`
	PendingBatchSize  int           `envconfig:"STAYBOOK_CRON_PENDING_SESSION_BATCH" default:"100"`
	OutboxRetention   time.Duration `envconfig:"STAYBOOK_CRON_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	db.UseSQLite = useSQLite
	if db.DSN != "" || useSQLite {
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
