package config

const EnvPrefix = "CLUBSPHERE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	OutboxBrokerPubSub   = "pubsub"
	OutboxBrokerRabbitMQ = "rabbitmq"
)

const (
	EnvAppEnv       = "CLUBSPHERE_APP_ENV"
	EnvPort         = "CLUBSPHERE_APP_PORT"
	EnvDBDSN        = "CLUBSPHERE_DB_DSN"
	EnvDBHost       = "CLUBSPHERE_DB_HOST"
	EnvDBUser       = "CLUBSPHERE_DB_USER"
	EnvDBName       = "CLUBSPHERE_DB_NAME"
	EnvRedisURL     = "CLUBSPHERE_REDIS_URL"
	EnvJWTSecret    = "CLUBSPHERE_JWT_SECRET"
	EnvJWTIssuer    = "CLUBSPHERE_JWT_ISSUER"
	EnvOutboxBroker = "CLUBSPHERE_OUTBOX_BROKER"
	EnvCronInterval = "CLUBSPHERE_CRON_INTERVAL"
	EnvCronLockTTL  = "CLUBSPHERE_CRON_LOCK_TTL"
	EnvCronTimeout  = "CLUBSPHERE_CRON_JOB_TIMEOUT"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
