package config

// EnvPrefix is passed to envconfig; every field carries its full name explicitly.
const EnvPrefix = "AQUAFLOW"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	StockDeductOnOrderPlaced    = "order_placed"
	StockDeductOnOrderDelivered = "order_delivered"
)

const (
	EnvAppEnv   = "AQUAFLOW_APP_ENV"
	EnvPort     = "AQUAFLOW_APP_PORT"
	EnvLogLevel = "AQUAFLOW_LOG_LEVEL"

	EnvDBDSN     = "AQUAFLOW_DB_DSN"
	EnvDBDriver  = "AQUAFLOW_DB_DRIVER"
	EnvDBHost    = "AQUAFLOW_DB_HOST"
	EnvDBUser    = "AQUAFLOW_DB_USER"
	EnvDBName    = "AQUAFLOW_DB_NAME"
	EnvUseSQLite = "AQUAFLOW_USE_SQLITE"

	EnvRedisURL = "AQUAFLOW_REDIS_URL"

	EnvPointsPerUnit      = "AQUAFLOW_POINTS_PER_UNIT"
	EnvPesoPerPoint       = "AQUAFLOW_PESO_PER_POINT"
	EnvDefaultDeliveryFee = "AQUAFLOW_DEFAULT_DELIVERY_FEE_CENTS"
	EnvStockDeductOn      = "AQUAFLOW_STOCK_DEDUCT_ON"
	EnvPointsCategories   = "AQUAFLOW_POINTS_CATEGORIES"

	EnvGCPProjectID = "AQUAFLOW_GCP_PROJECT_ID"
	EnvNotifyTopic  = "AQUAFLOW_PUBSUB_NOTIFICATION_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
