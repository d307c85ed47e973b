package config

const EnvPrefix = "CHOREPAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:chorepay.db?cache=shared&_busy_timeout=5000"
)

const (
	EnvAppEnv   = "CHOREPAY_APP_ENV"
	EnvPort     = "CHOREPAY_APP_PORT"
	EnvLogLevel = "CHOREPAY_LOG_LEVEL"

	EnvDBDSN  = "CHOREPAY_DB_DSN"
	EnvDBHost = "CHOREPAY_DB_HOST"
	EnvDBUser = "CHOREPAY_DB_USER"
	EnvDBName = "CHOREPAY_DB_NAME"

	EnvRedisURL = "CHOREPAY_REDIS_URL"

	EnvJWTSecret  = "CHOREPAY_JWT_SECRET"
	EnvJWTIssuer  = "CHOREPAY_JWT_ISSUER"
	EnvJWTExpMins = "CHOREPAY_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "CHOREPAY_USE_SQLITE"

	EnvLedgerTxMaxAttempts = "CHOREPAY_LEDGER_TX_MAX_ATTEMPTS"

	EnvGCPProjectID         = "CHOREPAY_GCP_PROJECT_ID"
	EnvPubSubNotifTopic     = "CHOREPAY_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubLedgerTopic    = "CHOREPAY_PUBSUB_LEDGER_TOPIC"
	EnvOutboxMaxAttempts    = "CHOREPAY_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxPublishBatchSz = "CHOREPAY_OUTBOX_PUBLISH_BATCH_SIZE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
