package config

const (
	EnvPrefix = "TABLEORDERS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	MatchByName = "name"
	MatchByID   = "id"

	ReceiptStrategyTimestamp = "timestamp"
	ReceiptStrategyCounter   = "counter"
)

const (
	EnvAppEnv   = "TABLEORDERS_APP_ENV"
	EnvPort     = "TABLEORDERS_APP_PORT"
	EnvLogLevel = "TABLEORDERS_LOG_LEVEL"

	EnvDBDSN    = "TABLEORDERS_DB_DSN"
	EnvDBDriver = "TABLEORDERS_DB_DRIVER"
	EnvDBHost   = "TABLEORDERS_DB_HOST"
	EnvDBUser   = "TABLEORDERS_DB_USER"
	EnvDBName   = "TABLEORDERS_DB_NAME"

	EnvRedisURL = "TABLEORDERS_REDIS_URL"

	EnvGCPProjectID            = "TABLEORDERS_GCP_PROJECT_ID"
	EnvPubSubSessionsTopic     = "TABLEORDERS_PUBSUB_SESSIONS_TOPIC"
	EnvPubSubAlertsSub         = "TABLEORDERS_PUBSUB_ALERTS_SUBSCRIPTION"
	EnvTableNumbers            = "TABLEORDERS_TABLE_NUMBERS"
	EnvSessionsMatchBy         = "TABLEORDERS_SESSIONS_MATCH_BY"
	EnvSessionsMaxAttempts     = "TABLEORDERS_SESSIONS_MAX_UPDATE_ATTEMPTS"
	EnvSessionsReceiptStrategy = "TABLEORDERS_SESSIONS_RECEIPT_STRATEGY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
