package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "LEDGERPAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "LEDGERPAY_APP_ENV"
	EnvPort         = "LEDGERPAY_APP_PORT"
	EnvDBDSN        = "LEDGERPAY_DB_DSN"
	EnvDBHost       = "LEDGERPAY_DB_HOST"
	EnvDBUser       = "LEDGERPAY_DB_USER"
	EnvDBName       = "LEDGERPAY_DB_NAME"
	EnvRedisURL     = "LEDGERPAY_REDIS_URL"
	EnvGCPProjectID = "LEDGERPAY_GCP_PROJECT_ID"

	EnvGatewayAPIKey        = "LEDGERPAY_GATEWAY_API_KEY"
	EnvGatewayWebhookSecret = "LEDGERPAY_GATEWAY_WEBHOOK_SECRET"
	EnvGatewayEnv           = "LEDGERPAY_GATEWAY_ENV"

	EnvEnforceInvoiceCap = "LEDGERPAY_VALIDATION_ENFORCE_INVOICE_CAP"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
