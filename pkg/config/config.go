package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	Gateway    GatewayConfig
	RateLimit  RateLimitConfig
	Validation ValidationConfig
	Eventing   EventingConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Outbox     OutboxConfig
	Sweep      SweepConfig

	FeatureFlags FeatureFlagsConfig
}

// FeatureFlagsConfig groups opt-in behavior toggles.
type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEDGERPAY_AUTO_MIGRATE" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEDGERPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"LEDGERPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEDGERPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEDGERPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LEDGERPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEDGERPAY_DB_DSN"`
	Driver string `envconfig:"LEDGERPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEDGERPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"LEDGERPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEDGERPAY_DB_USER"`
	LegacyPassword string `envconfig:"LEDGERPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEDGERPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEDGERPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEDGERPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEDGERPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEDGERPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEDGERPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEDGERPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEDGERPAY_REDIS_ADDR"`
	Password     string        `envconfig:"LEDGERPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEDGERPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEDGERPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEDGERPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEDGERPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEDGERPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEDGERPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig holds the payment gateway credentials and webhook secret.
type GatewayConfig struct {
	APIKey        string `envconfig:"LEDGERPAY_GATEWAY_API_KEY"`
	WebhookSecret string `envconfig:"LEDGERPAY_GATEWAY_WEBHOOK_SECRET"`
	Env           string `envconfig:"LEDGERPAY_GATEWAY_ENV" default:"test"`
	MerchantRef   string `envconfig:"LEDGERPAY_GATEWAY_MERCHANT_REF"`
}

// Environment returns the normalized gateway environment (test/live).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "test"
	}
	return env
}

// RateLimitConfig throttles the workspace-scoped payment endpoints.
type RateLimitConfig struct {
	Window         time.Duration `envconfig:"LEDGERPAY_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit        int           `envconfig:"LEDGERPAY_RATE_LIMIT_IP" default:"120"`
	WorkspaceLimit int           `envconfig:"LEDGERPAY_RATE_LIMIT_WORKSPACE" default:"600"`
}

// ValidationConfig groups tunable business rule toggles.
type ValidationConfig struct {
	// EnforceInvoiceCap rejects intents whose amount exceeds the invoice
	// total. The bypass is an explicit flag rather than an environment
	// check so test setups can exercise both paths.
	EnforceInvoiceCap bool `envconfig:"LEDGERPAY_VALIDATION_ENFORCE_INVOICE_CAP" default:"true"`

	// MaxAmountCents caps a single intent. Zero disables the cap.
	MaxAmountCents int64 `envconfig:"LEDGERPAY_VALIDATION_MAX_AMOUNT_CENTS" default:"0"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"LEDGERPAY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LEDGERPAY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"LEDGERPAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LEDGERPAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentEventsTopic        string `envconfig:"LEDGERPAY_PUBSUB_PAYMENT_EVENTS_TOPIC" default:"lp-payment-events"`
	PaymentEventsSubscription string `envconfig:"LEDGERPAY_PUBSUB_PAYMENT_EVENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LEDGERPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LEDGERPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LEDGERPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// SweepConfig controls the stale intent reconciliation sweep.
type SweepConfig struct {
	Interval       time.Duration `envconfig:"LEDGERPAY_SWEEP_INTERVAL" default:"5m"`
	StaleAfter     time.Duration `envconfig:"LEDGERPAY_SWEEP_STALE_AFTER" default:"15m"`
	BatchSize      int           `envconfig:"LEDGERPAY_SWEEP_BATCH_SIZE" default:"100"`
	LockTTLSeconds int           `envconfig:"LEDGERPAY_SWEEP_LOCK_TTL_SECONDS" default:"240"`
}

func (db *DBConfig) ensureDSN() error {
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
