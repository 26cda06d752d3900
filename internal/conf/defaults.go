// defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultConfidenceThreshold is the confidence under which the dashboard
// shows a low-confidence warning.
const DefaultConfidenceThreshold = 0.95

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.sessionsecret", "")
	v.SetDefault("server.sessionttl", 30*time.Minute)
	v.SetDefault("server.uploadlimit", "10M")
	v.SetDefault("server.corsorigins", []string{"*"})

	v.SetDefault("model.backend", "onnx")
	v.SetDefault("model.path", "models/model_classification.onnx")
	v.SetDefault("model.sharedlibrary", "")
	v.SetDefault("model.imagesize", 128)
	v.SetDefault("model.layout", "nhwc")
	v.SetDefault("model.inputname", "input")
	v.SetDefault("model.outputname", "output")
	v.SetDefault("model.threads", 1)
	v.SetDefault("model.labels.source", "builtin")
	v.SetDefault("model.labels.path", "models/model_metadata.json")

	v.SetDefault("dashboard.confidencethreshold", DefaultConfidenceThreshold)
	v.SetDefault("dashboard.feedback.requirelowconfidence", false)

	v.SetDefault("feedback.datasetroot", "data")
	v.SetDefault("feedback.logpath", "data/user_feedback.log")
	v.SetDefault("feedback.updatelog", "data/dataset_updates.log")

	v.SetDefault("datastore.type", "sqlite")
	v.SetDefault("datastore.sqlite.path", "data/feedback.db")
	v.SetDefault("datastore.mysql.host", "localhost")
	v.SetDefault("datastore.mysql.port", 3306)
	v.SetDefault("datastore.mysql.username", "anidex")
	v.SetDefault("datastore.mysql.password", "")
	v.SetDefault("datastore.mysql.database", "anidex")

	v.SetDefault("mirror.minio.enabled", false)
	v.SetDefault("mirror.minio.endpoint", "localhost:9000")
	v.SetDefault("mirror.minio.region", "us-east-1")
	v.SetDefault("mirror.minio.bucket", "anidex-dataset")
	v.SetDefault("mirror.minio.accesskey", "")
	v.SetDefault("mirror.minio.secretkey", "")
	v.SetDefault("mirror.minio.usessl", false)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "anidex/feedback")
	v.SetDefault("mqtt.clientid", "anidex")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	v.SetDefault("telemetry.sentry.enabled", false)
	v.SetDefault("telemetry.sentry.dsn", "")
	v.SetDefault("telemetry.sentry.environment", "production")
	v.SetDefault("telemetry.sentry.debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "logs/anidex.log")
	v.SetDefault("log.file.maxsize", 100)
	v.SetDefault("log.file.maxbackups", 10)
	v.SetDefault("log.file.maxage", 30)
	v.SetDefault("log.file.compress", false)
}
