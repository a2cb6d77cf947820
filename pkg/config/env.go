package config

const (
	EnvPrefix = "FOODRESCUE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "FOODRESCUE_APP_ENV"
	EnvPort     = "FOODRESCUE_APP_PORT"
	EnvLogLevel = "FOODRESCUE_LOG_LEVEL"

	EnvDBDSN  = "FOODRESCUE_DB_DSN"
	EnvDBHost = "FOODRESCUE_DB_HOST"
	EnvDBUser = "FOODRESCUE_DB_USER"
	EnvDBName = "FOODRESCUE_DB_NAME"

	EnvRedisURL = "FOODRESCUE_REDIS_URL"

	EnvCronInterval = "FOODRESCUE_CRON_INTERVAL"
	EnvCronLockTTL  = "FOODRESCUE_CRON_LOCK_TTL"

	EnvJWTSecret = "FOODRESCUE_JWT_SECRET"
	EnvJWTIssuer = "FOODRESCUE_JWT_ISSUER"

	EnvGCPProjectID = "FOODRESCUE_GCP_PROJECT_ID"

	EnvPubSubReservationsTopic = "FOODRESCUE_PUBSUB_RESERVATIONS_TOPIC"
	EnvPubSubAnalyticsSub      = "FOODRESCUE_PUBSUB_ANALYTICS_SUBSCRIPTION"

	EnvReservationWindowPadding = "FOODRESCUE_RESERVATION_WINDOW_PADDING"
)
