package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Features  FeatureFlagsConfig
	Payments  PaymentsConfig
	Members   MembershipConfig
	Stripe    StripeConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	RabbitMQ  RabbitMQConfig
	Outbox    OutboxConfig
	Cron      CronConfig
	Tracing   TracingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cron.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLUBSPHERE_APP_ENV" required:"true"`
	Port         string `envconfig:"CLUBSPHERE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLUBSPHERE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLUBSPHERE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"CLUBSPHERE_CORS_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	out := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"CLUBSPHERE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CLUBSPHERE_DB_DSN"`
	Driver string `envconfig:"CLUBSPHERE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CLUBSPHERE_DB_HOST"`
	Port     int    `envconfig:"CLUBSPHERE_DB_PORT" default:"5432"`
	User     string `envconfig:"CLUBSPHERE_DB_USER"`
	Password string `envconfig:"CLUBSPHERE_DB_PASSWORD"`
	Name     string `envconfig:"CLUBSPHERE_DB_NAME"`
	SSLMode  string `envconfig:"CLUBSPHERE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLUBSPHERE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLUBSPHERE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLUBSPHERE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLUBSPHERE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"CLUBSPHERE_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLUBSPHERE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLUBSPHERE_REDIS_ADDR"`
	Password     string        `envconfig:"CLUBSPHERE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLUBSPHERE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLUBSPHERE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLUBSPHERE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLUBSPHERE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLUBSPHERE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLUBSPHERE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the tokens minted by the external identity provider.
type JWTConfig struct {
	Secret   string        `envconfig:"CLUBSPHERE_JWT_SECRET" required:"true"`
	Issuer   string        `envconfig:"CLUBSPHERE_JWT_ISSUER" required:"true"`
	Audience string        `envconfig:"CLUBSPHERE_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"CLUBSPHERE_JWT_LEEWAY" default:"30s"`
}

type RateLimitConfig struct {
	Window         time.Duration `envconfig:"CLUBSPHERE_RATE_LIMIT_WINDOW" default:"1m"`
	WriteLimit     int           `envconfig:"CLUBSPHERE_RATE_LIMIT_WRITE_LIMIT" default:"60"`
	IdempotencyTTL time.Duration `envconfig:"CLUBSPHERE_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CLUBSPHERE_AUTO_MIGRATE" default:"false"`
	Tracing     bool `envconfig:"CLUBSPHERE_FEATURE_TRACING" default:"false"`
}

// PaymentsConfig tunes the reconciliation engine and its gateway guard rails.
type PaymentsConfig struct {
	Currency              string        `envconfig:"CLUBSPHERE_PAYMENTS_CURRENCY" default:"usd"`
	GatewayRatePerSecond  float64       `envconfig:"CLUBSPHERE_PAYMENTS_GATEWAY_RPS" default:"20"`
	GatewayBurst          int           `envconfig:"CLUBSPHERE_PAYMENTS_GATEWAY_BURST" default:"40"`
	BreakerFailures       uint32        `envconfig:"CLUBSPHERE_PAYMENTS_BREAKER_FAILURES" default:"5"`
	BreakerOpenTimeout    time.Duration `envconfig:"CLUBSPHERE_PAYMENTS_BREAKER_OPEN_TIMEOUT" default:"30s"`
	WebhookIdempotencyTTL time.Duration `envconfig:"CLUBSPHERE_PAYMENTS_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// MembershipConfig controls membership terms. A zero Term means memberships never lapse on their own.
type MembershipConfig struct {
	Term time.Duration `envconfig:"CLUBSPHERE_MEMBERSHIP_TERM" default:"0"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CLUBSPHERE_STRIPE_API_KEY"`
	Secret string `envconfig:"CLUBSPHERE_STRIPE_SECRET"`
	Env    string `envconfig:"CLUBSPHERE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"CLUBSPHERE_GCP_PROJECT_ID"`
}

// PubSubConfig names the topics the outbox publisher writes to. CreateTopics
// is meant for the emulator; production topics are provisioned up front.
type PubSubConfig struct {
	DomainTopic  string `envconfig:"CLUBSPHERE_PUBSUB_DOMAIN_TOPIC" default:"clubsphere-domain-events"`
	DLQTopic     string `envconfig:"CLUBSPHERE_PUBSUB_DLQ_TOPIC"`
	Ordering     bool   `envconfig:"CLUBSPHERE_PUBSUB_ORDERING" default:"true"`
	CreateTopics bool   `envconfig:"CLUBSPHERE_PUBSUB_CREATE_TOPICS" default:"false"`
}

type RabbitMQConfig struct {
	URL      string `envconfig:"CLUBSPHERE_RABBITMQ_URL"`
	Exchange string `envconfig:"CLUBSPHERE_RABBITMQ_EXCHANGE" default:"clubsphere.events"`
}

type OutboxConfig struct {
	Broker         string `envconfig:"CLUBSPHERE_OUTBOX_BROKER" default:"pubsub"`
	BatchSize      int    `envconfig:"CLUBSPHERE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"CLUBSPHERE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"CLUBSPHERE_OUTBOX_MAX_ATTEMPTS" default:"10"`

	Retention          time.Duration `envconfig:"CLUBSPHERE_OUTBOX_RETENTION" default:"720h"`
	ParkedRetention    time.Duration `envconfig:"CLUBSPHERE_OUTBOX_PARKED_RETENTION" default:"2160h"`
	RetentionBatchSize int           `envconfig:"CLUBSPHERE_OUTBOX_RETENTION_BATCH_SIZE" default:"1000"`
}

func (o *OutboxConfig) validate() error {
	o.Broker = strings.ToLower(strings.TrimSpace(o.Broker))
	switch o.Broker {
	case OutboxBrokerPubSub, OutboxBrokerRabbitMQ:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvOutboxBroker, OutboxBrokerPubSub, OutboxBrokerRabbitMQ)
	}
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"CLUBSPHERE_CRON_INTERVAL" default:"1m"`
	LockTTL            time.Duration `envconfig:"CLUBSPHERE_CRON_LOCK_TTL" default:"5m"`
	JobTimeout         time.Duration `envconfig:"CLUBSPHERE_CRON_JOB_TIMEOUT" default:"4m"`
	ExpiryBatchSize    int           `envconfig:"CLUBSPHERE_CRON_EXPIRY_BATCH_SIZE" default:"500"`
	ReconcileBatchSize int           `envconfig:"CLUBSPHERE_CRON_RECONCILE_BATCH_SIZE" default:"100"`
	ReconcileMinAge    time.Duration `envconfig:"CLUBSPHERE_CRON_RECONCILE_MIN_AGE" default:"10m"`
	ReconcileAbandon   time.Duration `envconfig:"CLUBSPHERE_CRON_RECONCILE_ABANDON_AFTER" default:"24h"`
	ReconcileLookback  time.Duration `envconfig:"CLUBSPHERE_CRON_RECONCILE_LOOKBACK" default:"168h"`
}

func (c CronConfig) validate() error {
	if c.JobTimeout > 0 && c.LockTTL > 0 && c.JobTimeout >= c.LockTTL {
		return fmt.Errorf("%s must be shorter than %s", EnvCronTimeout, EnvCronLockTTL)
	}
	return nil
}

type TracingConfig struct {
	Endpoint    string  `envconfig:"CLUBSPHERE_OTEL_ENDPOINT" default:"localhost:4318"`
	Insecure    bool    `envconfig:"CLUBSPHERE_OTEL_INSECURE" default:"true"`
	SampleRatio float64 `envconfig:"CLUBSPHERE_OTEL_SAMPLE_RATIO" default:"1"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range splitDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
