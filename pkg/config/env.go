package config

const EnvPrefix = "STAYBOOK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv  = "STAYBOOK_APP_ENV"
	EnvPort    = "STAYBOOK_APP_PORT"
	EnvLogFmt  = "STAYBOOK_LOG_FORMAT"
	EnvDBDSN   = "STAYBOOK_DB_DSN"
	EnvDBHost  = "STAYBOOK_DB_HOST"
	EnvDBUser  = "STAYBOOK_DB_USER"
	EnvDBName  = "STAYBOOK_DB_NAME"
	EnvUseLite = "STAYBOOK_USE_SQLITE"

	EnvRedisURL   = "STAYBOOK_REDIS_URL"
	EnvJWTSecret  = "STAYBOOK_JWT_SECRET"
	EnvJWTIssuer  = "STAYBOOK_JWT_ISSUER"
	EnvJWTExpMins = "STAYBOOK_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey           = "STAYBOOK_STRIPE_API_KEY"
	EnvStripeSecret           = "STAYBOOK_STRIPE_SECRET"
	EnvStripeEnv              = "STAYBOOK_STRIPE_ENV"
	EnvStripeRedirectURL      = "STAYBOOK_STRIPE_ONBOARDING_REDIRECT_URL"
	EnvStripeSettingsURL      = "STAYBOOK_STRIPE_SETTINGS_REDIRECT_URL"
	EnvStripeSuccessURL       = "STAYBOOK_STRIPE_SUCCESS_URL"
	EnvStripeCancelURL        = "STAYBOOK_STRIPE_CANCEL_URL"
	EnvStripeFeePercent       = "STAYBOOK_STRIPE_PLATFORM_FEE_PERCENT"
	EnvStripeApplyFee         = "STAYBOOK_STRIPE_APPLY_APPLICATION_FEE"
	EnvStripeCallTimeout      = "STAYBOOK_STRIPE_CALL_TIMEOUT"
	EnvGCPProjectID           = "STAYBOOK_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "STAYBOOK_PUBSUB_ORDERS_TOPIC"
	EnvCronPendingSessionAge  = "STAYBOOK_CRON_PENDING_SESSION_AGE"
	EnvCronPendingSessionSize = "STAYBOOK_CRON_PENDING_SESSION_BATCH"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
