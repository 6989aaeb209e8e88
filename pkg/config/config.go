package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	Eventing       EventingConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	BigQuery       BigQueryConfig
	Outbox         OutboxConfig
	Stripe         StripeConfig
	Square         SquareConfig
	Pricing        PricingConfig
	Orders         OrdersConfig
	HTTP           HTTPConfig
	Reconciliation ReconciliationConfig
	Sentry         SentryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERBRIDGE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"ORDERBRIDGE_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERBRIDGE_SERVICE_KIND" default:"api"`
	// MetricsAddr is the worker-side /metrics listener. The API serves
	// /metrics on its own router and ignores it.
	MetricsAddr string `envconfig:"ORDERBRIDGE_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERBRIDGE_DB_DSN"`
	Driver string `envconfig:"ORDERBRIDGE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ORDERBRIDGE_DB_HOST"`
	Port     int    `envconfig:"ORDERBRIDGE_DB_PORT" default:"5432"`
	User     string `envconfig:"ORDERBRIDGE_DB_USER"`
	Password string `envconfig:"ORDERBRIDGE_DB_PASSWORD"`
	Name     string `envconfig:"ORDERBRIDGE_DB_NAME"`
	SSLMode  string `envconfig:"ORDERBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"ORDERBRIDGE_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// IsSQLite reports whether the embedded driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERBRIDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig only carries verification settings; tokens are minted by the identity service.
type JWTConfig struct {
	Secret string `envconfig:"ORDERBRIDGE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"ORDERBRIDGE_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ORDERBRIDGE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ORDERBRIDGE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL  time.Duration `envconfig:"ORDERBRIDGE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	ProcessingTTL         time.Duration `envconfig:"ORDERBRIDGE_EVENTING_PROCESSING_TTL" default:"5m"`
	WebhookIdempotencyTTL time.Duration `envconfig:"ORDERBRIDGE_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERBRIDGE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ORDERBRIDGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDERBRIDGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"ORDERBRIDGE_PUBSUB_ORDERS_TOPIC" default:"ob-order-events"`
	OrdersSubscription    string `envconfig:"ORDERBRIDGE_PUBSUB_ORDERS_SUBSCRIPTION"`
	AnalyticsSubscription string `envconfig:"ORDERBRIDGE_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"ORDERBRIDGE_BIGQUERY_DATASET" default:"orderbridge"`
	OrderEventsTable string `envconfig:"ORDERBRIDGE_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
	// CreateTables lets the analytics worker create missing tables from the
	// row schema instead of refusing to start.
	CreateTables bool `envconfig:"ORDERBRIDGE_BIGQUERY_CREATE_TABLES" default:"false"`
	BatchSize    int  `envconfig:"ORDERBRIDGE_BIGQUERY_BATCH_SIZE" default:"1"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERBRIDGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERBRIDGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERBRIDGE_OUTBOX_MAX_ATTEMPTS" default:"10"`

	Retention         time.Duration `envconfig:"ORDERBRIDGE_OUTBOX_RETENTION" default:"720h"`
	RetentionInterval time.Duration `envconfig:"ORDERBRIDGE_OUTBOX_RETENTION_INTERVAL" default:"24h"`
}

// StripeConfig drives the card rail.
type StripeConfig struct {
	SecretKey     string `envconfig:"ORDERBRIDGE_STRIPE_SECRET_KEY"`
	WebhookSecret string `envconfig:"ORDERBRIDGE_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"ORDERBRIDGE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// SquareConfig drives the wallet rail. ApplicationID is the public client id
// handed to the storefront wallet SDK.
type SquareConfig struct {
	AccessToken     string `envconfig:"ORDERBRIDGE_SQUARE_ACCESS_TOKEN"`
	ApplicationID   string `envconfig:"ORDERBRIDGE_SQUARE_APPLICATION_ID"`
	LocationID      string `envconfig:"ORDERBRIDGE_SQUARE_LOCATION_ID"`
	WebhookSecret   string `envconfig:"ORDERBRIDGE_SQUARE_WEBHOOK_SIGNATURE_KEY"`
	NotificationURL string `envconfig:"ORDERBRIDGE_SQUARE_WEBHOOK_NOTIFICATION_URL"`
	Env             string `envconfig:"ORDERBRIDGE_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// PricingConfig holds the checkout pricing constants.
type PricingConfig struct {
	TaxRate               decimal.Decimal `envconfig:"ORDERBRIDGE_TAX_RATE" default:"0.0825"`
	FreeShippingThreshold decimal.Decimal `envconfig:"ORDERBRIDGE_FREE_SHIPPING_THRESHOLD" default:"50.00"`
	FlatShippingFee       decimal.Decimal `envconfig:"ORDERBRIDGE_FLAT_SHIPPING_FEE" default:"9.99"`
	Currency              string          `envconfig:"ORDERBRIDGE_CURRENCY" default:"usd"`
}

func (p PricingConfig) validate() error {
	if p.TaxRate.IsNegative() {
		return fmt.Errorf("%s must be non-negative", EnvTaxRate)
	}
	if p.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("%s must be non-negative", EnvFreeShippingThreshold)
	}
	if p.FlatShippingFee.IsNegative() {
		return fmt.Errorf("%s must be non-negative", EnvFlatShippingFee)
	}
	return nil
}

type OrdersConfig struct {
	NumberAttempts int           `envconfig:"ORDERBRIDGE_ORDER_NUMBER_ATTEMPTS" default:"3"`
	AbandonedTTL   time.Duration `envconfig:"ORDERBRIDGE_ORDER_ABANDONED_TTL" default:"72h"`
	ExpiryInterval time.Duration `envconfig:"ORDERBRIDGE_ORDER_EXPIRY_INTERVAL" default:"15m"`
}

type HTTPConfig struct {
	RequestTimeout   time.Duration `envconfig:"ORDERBRIDGE_HTTP_REQUEST_TIMEOUT" default:"30s"`
	ProcessorTimeout time.Duration `envconfig:"ORDERBRIDGE_PROCESSOR_TIMEOUT" default:"15s"`
	ShutdownTimeout  time.Duration `envconfig:"ORDERBRIDGE_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	RateLimit        int64         `envconfig:"ORDERBRIDGE_HTTP_RATE_LIMIT" default:"120"`
	RateLimitWindow  time.Duration `envconfig:"ORDERBRIDGE_HTTP_RATE_LIMIT_WINDOW" default:"1m"`
	CORSOrigins      []string      `envconfig:"ORDERBRIDGE_HTTP_CORS_ORIGINS" default:"http://localhost:3000"`
}

type ReconciliationConfig struct {
	SweepAge      time.Duration `envconfig:"ORDERBRIDGE_RECONCILE_SWEEP_AGE" default:"15m"`
	SweepBatch    int           `envconfig:"ORDERBRIDGE_RECONCILE_SWEEP_BATCH" default:"100"`
	SweepWorkers  int           `envconfig:"ORDERBRIDGE_RECONCILE_SWEEP_WORKERS" default:"4"`
	SweepInterval time.Duration `envconfig:"ORDERBRIDGE_RECONCILE_SWEEP_INTERVAL" default:"5m"`
}

type SentryConfig struct {
	DSN string `envconfig:"ORDERBRIDGE_SENTRY_DSN"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
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
