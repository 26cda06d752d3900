package conf

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Brownie44l1/anidex/internal/errors"
)

// Enum values of the model and datastore settings.
const (
	BackendONNX   = "onnx"
	BackendTFLite = "tflite"

	LabelSourceBuiltin  = "builtin"
	LabelSourceMetadata = "metadata"
	LabelSourceFile     = "file"

	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"

	StoreNone   = "none"
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"
)

// Accepted enum values.
var (
	ModelBackends = []string{BackendONNX, BackendTFLite}
	LabelSources  = []string{LabelSourceBuiltin, LabelSourceMetadata, LabelSourceFile}
	TensorLayouts = []string{LayoutNHWC, LayoutNCHW}
	StoreTypes    = []string{StoreNone, StoreSQLite, StoreMySQL}
)

// ValidateSettings normalises enum values and checks ranges.
func ValidateSettings(s *Settings) error {
	var errs []error

	s.Model.Backend = strings.ToLower(strings.TrimSpace(s.Model.Backend))
	s.Model.Layout = strings.ToLower(strings.TrimSpace(s.Model.Layout))
	s.Model.Labels.Source = strings.ToLower(strings.TrimSpace(s.Model.Labels.Source))
	s.Datastore.Type = strings.ToLower(strings.TrimSpace(s.Datastore.Type))

	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Server.Port))
	}
	if s.Server.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("server.sessionttl must be positive"))
	}
	if !slices.Contains(ModelBackends, s.Model.Backend) {
		errs = append(errs, fmt.Errorf("model.backend %q not one of %v", s.Model.Backend, ModelBackends))
	}
	if s.Model.Path == "" {
		errs = append(errs, fmt.Errorf("model.path is required"))
	}
	if s.Model.ImageSize <= 0 {
		errs = append(errs, fmt.Errorf("model.imagesize must be positive"))
	}
	if !slices.Contains(TensorLayouts, s.Model.Layout) {
		errs = append(errs, fmt.Errorf("model.layout %q not one of %v", s.Model.Layout, TensorLayouts))
	}
	if !slices.Contains(LabelSources, s.Model.Labels.Source) {
		errs = append(errs, fmt.Errorf("model.labels.source %q not one of %v", s.Model.Labels.Source, LabelSources))
	}
	if s.Model.Labels.Source != LabelSourceBuiltin && s.Model.Labels.Path == "" {
		errs = append(errs, fmt.Errorf("model.labels.path is required for source %q", s.Model.Labels.Source))
	}
	if t := s.Dashboard.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("dashboard.confidencethreshold %.2f not in [0,1]", t))
	}
	if s.Feedback.DatasetRoot == "" {
		errs = append(errs, fmt.Errorf("feedback.datasetroot is required"))
	}
	if s.Feedback.LogPath == "" {
		errs = append(errs, fmt.Errorf("feedback.logpath is required"))
	}
	if !slices.Contains(StoreTypes, s.Datastore.Type) {
		errs = append(errs, fmt.Errorf("datastore.type %q not one of %v", s.Datastore.Type, StoreTypes))
	}
	if s.Mirror.Minio.Enabled && s.Mirror.Minio.Bucket == "" {
		errs = append(errs, fmt.Errorf("mirror.minio.bucket is required when the mirror is enabled"))
	}
	if s.MQTT.Enabled && s.MQTT.Topic == "" {
		errs = append(errs, fmt.Errorf("mqtt.topic is required when mqtt is enabled"))
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.New(errors.Join(errs...)).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Build()
}
