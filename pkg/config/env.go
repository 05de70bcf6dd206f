package config

const (
	EnvPrefix = "KIBBLE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "KIBBLE_APP_ENV"
	EnvPort           = "KIBBLE_APP_PORT"
	EnvDBDSN          = "KIBBLE_DB_DSN"
	EnvDBHost         = "KIBBLE_DB_HOST"
	EnvDBUser         = "KIBBLE_DB_USER"
	EnvDBName         = "KIBBLE_DB_NAME"
	EnvDBPassword     = "KIBBLE_DB_PASSWORD"
	EnvRedisURL       = "KIBBLE_REDIS_URL"
	EnvJWTSecret      = "KIBBLE_JWT_SECRET"
	EnvJWTIssuer      = "KIBBLE_JWT_ISSUER"
	EnvJWTExpMins     = "KIBBLE_JWT_EXPIRATION_MINUTES"
	EnvCarrierAPIKey  = "KIBBLE_CARRIER_API_KEY"
	EnvAdminEmails    = "KIBBLE_ADMIN_EMAILS"
	EnvUseSQLite      = "KIBBLE_USE_SQLITE"
	EnvPackagingAllow = "KIBBLE_CARRIER_PACKAGING_ALLOWANCE_KG"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
