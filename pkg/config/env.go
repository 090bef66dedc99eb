package config

const (
	EnvPrefix = "TABLESIDE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv              = "TABLESIDE_APP_ENV"
	EnvAPIBaseURL          = "TABLESIDE_API_BASE_URL"
	EnvAPIOrderCreatePath  = "TABLESIDE_API_ORDER_CREATE_PATH"
	EnvRealtimeBaseURL     = "TABLESIDE_REALTIME_BASE_URL"
	EnvRealtimeMaxAttempts = "TABLESIDE_REALTIME_MAX_RECONNECT_ATTEMPTS"
	EnvRealtimeBaseDelay   = "TABLESIDE_REALTIME_BASE_DELAY"
	EnvValidationMode      = "TABLESIDE_ORDERS_VALIDATION_MODE"
	EnvPersistenceDriver   = "TABLESIDE_PERSISTENCE_DRIVER"
	EnvDBDSN               = "TABLESIDE_DB_DSN"
	EnvDBHost              = "TABLESIDE_DB_HOST"
	EnvDBUser              = "TABLESIDE_DB_USER"
	EnvDBName              = "TABLESIDE_DB_NAME"
	EnvDisplayUserID       = "TABLESIDE_DISPLAY_USER_ID"
)

var dbEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
