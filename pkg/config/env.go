package config

const (
	EnvPrefix = "MEDMARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "MEDMARKET_APP_ENV"
	EnvPort      = "MEDMARKET_APP_PORT"
	EnvLogLevel  = "MEDMARKET_LOG_LEVEL"
	EnvLogFormat = "MEDMARKET_LOG_FORMAT"

	EnvDBDSN  = "MEDMARKET_DB_DSN"
	EnvDBHost = "MEDMARKET_DB_HOST"
	EnvDBUser = "MEDMARKET_DB_USER"
	EnvDBName = "MEDMARKET_DB_NAME"

	EnvRedisURL = "MEDMARKET_REDIS_URL"

	EnvJWTSecret              = "MEDMARKET_JWT_SECRET"
	EnvJWTIssuer              = "MEDMARKET_JWT_ISSUER"
	EnvJWTExpMins             = "MEDMARKET_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "MEDMARKET_REFRESH_TOKEN_TTL_MINUTES"

	EnvCheckoutCurrency   = "MEDMARKET_CHECKOUT_CURRENCY"
	EnvCheckoutPendingTTL = "MEDMARKET_CHECKOUT_PENDING_ORDER_TTL"

	EnvCronInterval    = "MEDMARKET_CRON_INTERVAL"
	EnvCronJobTimeout  = "MEDMARKET_CRON_JOB_TIMEOUT"
	EnvCronMetricsAddr = "MEDMARKET_CRON_METRICS_ADDR"
)

var dbPartsEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
