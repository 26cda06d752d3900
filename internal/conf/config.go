// Package conf loads application settings from defaults, config file,
// environment and command line flags.
package conf

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable binding.
const EnvPrefix = "ANIDEX"

// Settings is the root configuration struct.
type Settings struct {
	Debug bool

	Server    ServerSettings
	Model     ModelSettings
	Dashboard DashboardSettings
	Feedback  FeedbackSettings
	Datastore DatastoreSettings
	Mirror    MirrorSettings
	MQTT      MQTTSettings
	Telemetry TelemetrySettings
	Log       LogSettings
}

// ServerSettings configures the HTTP listener and browser sessions.
type ServerSettings struct {
	Port          int
	SessionSecret string
	SessionTTL    time.Duration
	UploadLimit   string // echo body limit, e.g. "10M"
	CORSOrigins   []string
}

// ModelSettings configures the classifier adapter.
type ModelSettings struct {
	Backend       string // onnx or tflite
	Path          string
	SharedLibrary string // onnxruntime shared library, optional
	ImageSize     int
	Layout        string // nhwc or nchw
	InputName     string
	OutputName    string
	Threads       int
	Labels        LabelSettings
}

// LabelSettings selects where the ordered label set comes from.
type LabelSettings struct {
	Source string // builtin, metadata or file
	Path   string
}

// DashboardSettings configures the interactive workflow.
type DashboardSettings struct {
	ConfidenceThreshold float64
	Feedback            struct {
		RequireLowConfidence bool
	}
}

// FeedbackSettings configures the on-disk dataset and feedback log.
type FeedbackSettings struct {
	DatasetRoot string
	LogPath     string
	UpdateLog   string // dataset update request log, empty disables it
}

// DatastoreSettings configures the optional feedback index.
type DatastoreSettings struct {
	Type   string // none, sqlite or mysql
	SQLite struct {
		Path string
	}
	MySQL struct {
		Host     string
		Port     int
		Username string
		Password string
		Database string
	}
}

// MirrorSettings configures the optional object store mirror of the dataset.
type MirrorSettings struct {
	Minio MinioSettings
}

// MinioSettings holds MinIO/S3 connection details.
type MinioSettings struct {
	Enabled   bool
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MQTTSettings configures the optional feedback event publisher.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// TelemetrySettings configures error reporting.
type TelemetrySettings struct {
	Sentry struct {
		Enabled     bool
		DSN         string
		Environment string
		Debug       bool
	}
}

// LogSettings configures logging output.
type LogSettings struct {
	Level string
	File  struct {
		Enabled    bool
		Path       string
		MaxSize    int // megabytes
		MaxBackups int
		MaxAge     int // days
		Compress   bool
	}
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

// NewViper returns a viper instance with defaults and env bindings applied.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaultConfig(v)
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Load reads the optional config file into v and returns validated settings.
// An empty configFile searches the working directory and ./config for config.yaml.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// Default returns validated settings built from defaults only.
func Default() *Settings {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		panic(fmt.Sprintf("default settings do not unmarshal: %v", err))
	}
	return settings
}
