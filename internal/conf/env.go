// env.go environment variable bindings
package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envKeys lists config keys that may be overridden from the environment.
// ANIDEX_MODEL_PATH maps to model.path and so on.
var envKeys = []string{
	"debug",
	"server.port",
	"server.sessionsecret",
	"server.sessionttl",
	"model.backend",
	"model.path",
	"model.sharedlibrary",
	"model.imagesize",
	"model.layout",
	"model.labels.source",
	"model.labels.path",
	"dashboard.confidencethreshold",
	"dashboard.feedback.requirelowconfidence",
	"feedback.datasetroot",
	"feedback.logpath",
	"feedback.updatelog",
	"datastore.type",
	"datastore.sqlite.path",
	"datastore.mysql.host",
	"datastore.mysql.port",
	"datastore.mysql.username",
	"datastore.mysql.password",
	"datastore.mysql.database",
	"mirror.minio.enabled",
	"mirror.minio.endpoint",
	"mirror.minio.bucket",
	"mirror.minio.accesskey",
	"mirror.minio.secretkey",
	"mqtt.enabled",
	"mqtt.broker",
	"mqtt.username",
	"mqtt.password",
	"telemetry.sentry.enabled",
	"telemetry.sentry.dsn",
	"log.level",
}

// EnvVarName returns the environment variable bound to a config key.
func EnvVarName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func bindEnvVars(v *viper.Viper) error {
	for _, key := range envKeys {
		if err := v.BindEnv(key, EnvVarName(key)); err != nil {
			return fmt.Errorf("failed to bind %s: %w", EnvVarName(key), err)
		}
	}
	return nil
}
