package config

const EnvPrefix = "chainpay"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv         = "CHAINPAY_APP_ENV"
	EnvAppPort        = "CHAINPAY_APP_PORT"
	EnvDBDSN          = "CHAINPAY_DB_DSN"
	EnvDBHost         = "CHAINPAY_DB_HOST"
	EnvDBUser         = "CHAINPAY_DB_USER"
	EnvDBName         = "CHAINPAY_DB_NAME"
	EnvRedisURL       = "CHAINPAY_REDIS_URL"
	EnvChainProviders = "CHAINPAY_CHAIN_PROVIDERS"
	EnvAddressPools   = "CHAINPAY_ADDRESS_POOLS"
	EnvThresholds     = "CHAINPAY_CONFIRMATION_THRESHOLDS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
