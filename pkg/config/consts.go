package config

const (
	EnvPrefix = "SPIZARKA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SPIZARKA_DB_DSN"
	EnvDBHost = "SPIZARKA_DB_HOST"
	EnvDBUser = "SPIZARKA_DB_USER"
	EnvDBName = "SPIZARKA_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
