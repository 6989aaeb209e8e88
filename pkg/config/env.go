package config

const EnvPrefix = "ORDERBRIDGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:orderbridge.db?_foreign_keys=on"
)

const (
	EnvAppEnv   = "ORDERBRIDGE_APP_ENV"
	EnvPort     = "ORDERBRIDGE_APP_PORT"
	EnvLogLevel = "ORDERBRIDGE_LOG_LEVEL"

	EnvDBDSN      = "ORDERBRIDGE_DB_DSN"
	EnvDBDriver   = "ORDERBRIDGE_DB_DRIVER"
	EnvDBHost     = "ORDERBRIDGE_DB_HOST"
	EnvDBUser     = "ORDERBRIDGE_DB_USER"
	EnvDBPassword = "ORDERBRIDGE_DB_PASSWORD"
	EnvDBName     = "ORDERBRIDGE_DB_NAME"

	EnvRedisURL = "ORDERBRIDGE_REDIS_URL"

	EnvJWTSecret = "ORDERBRIDGE_JWT_SECRET"
	EnvJWTIssuer = "ORDERBRIDGE_JWT_ISSUER"

	EnvUseSQLite = "ORDERBRIDGE_USE_SQLITE"

	EnvGCPProjectID = "ORDERBRIDGE_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic     = "ORDERBRIDGE_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub       = "ORDERBRIDGE_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubAnalyticsSub    = "ORDERBRIDGE_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvBigQueryDataset       = "ORDERBRIDGE_BIGQUERY_DATASET"
	EnvBigQueryOrderEvents   = "ORDERBRIDGE_BIGQUERY_ORDER_EVENTS_TABLE"
	EnvStripeSecretKey       = "ORDERBRIDGE_STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret   = "ORDERBRIDGE_STRIPE_WEBHOOK_SECRET"
	EnvSquareAccessToken     = "ORDERBRIDGE_SQUARE_ACCESS_TOKEN"
	EnvSquareApplicationID   = "ORDERBRIDGE_SQUARE_APPLICATION_ID"
	EnvSquareWebhookKey      = "ORDERBRIDGE_SQUARE_WEBHOOK_SIGNATURE_KEY"
	EnvSquareNotificationURL = "ORDERBRIDGE_SQUARE_WEBHOOK_NOTIFICATION_URL"

	EnvTaxRate               = "ORDERBRIDGE_TAX_RATE"
	EnvFreeShippingThreshold = "ORDERBRIDGE_FREE_SHIPPING_THRESHOLD"
	EnvFlatShippingFee       = "ORDERBRIDGE_FLAT_SHIPPING_FEE"

	EnvOrderNumberAttempts = "ORDERBRIDGE_ORDER_NUMBER_ATTEMPTS"
	EnvRequestTimeout      = "ORDERBRIDGE_HTTP_REQUEST_TIMEOUT"
	EnvProcessorTimeout    = "ORDERBRIDGE_PROCESSOR_TIMEOUT"
	EnvSentryDSN           = "ORDERBRIDGE_SENTRY_DSN"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
