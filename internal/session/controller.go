package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/feedback"
	"github.com/Brownie44l1/anidex/internal/logging"
	"github.com/Brownie44l1/anidex/internal/model"
	"github.com/Brownie44l1/anidex/internal/observability/metrics"
)

// AllowedExtensions are the accepted upload file types.
var AllowedExtensions = []string{".png", ".jpg", ".jpeg"}

// Predictor classifies encoded images.
type Predictor interface {
	Predict(ctx context.Context, data []byte) (*model.PredictionResult, error)
}

// Recorder persists feedback.
type Recorder interface {
	Record(ctx context.Context, sub feedback.Submission) (feedback.Record, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Options tune the controller.
type Options struct {
	// Threshold under which a prediction is flagged as low confidence.
	Threshold float64
	// RequireLowConfidence asks for feedback only on low-confidence predictions.
	RequireLowConfidence bool
	Backend              string
	Clock                Clock
	Metrics              *metrics.Metrics
}

// Controller applies workflow operations to sessions. Callers serialise
// access to a given session, see Store.
type Controller struct {
	predictor Predictor
	recorder  Recorder
	labels    []string
	opts      Options
	log       *slog.Logger
}

// NewController wires the classifier and feedback recorder.
func NewController(predictor Predictor, recorder Recorder, labels []string, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &Controller{
		predictor: predictor,
		recorder:  recorder,
		labels:    slices.Clone(labels),
		opts:      opts,
		log:       logging.ForService("session"),
	}
}

// Labels returns the labels a correction may choose from.
func (c *Controller) Labels() []string { return slices.Clone(c.labels) }

// Threshold is the low-confidence threshold.
func (c *Controller) Threshold() float64 { return c.opts.Threshold }

func stateError(s *Session, op string) error {
	return errors.Newf("cannot %s in state %s", op, s.State).
		Component("session").
		Category(errors.CategoryState).
		Context("session", s.ID).
		Build()
}

// Upload stores a new image and moves the session to ImageUploaded. A
// rejected file leaves the session untouched.
func (c *Controller) Upload(s *Session, filename string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(AllowedExtensions, ext) {
		return errors.Newf("unsupported file type %q, allowed: PNG, JPG, JPEG", ext).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(data) == 0 {
		return errors.Newf("uploaded file %s is empty", filename).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}

	now := c.opts.Clock.Now()
	s.reset()
	s.Upload = &Upload{Filename: filename, Data: data, UploadedAt: now}
	s.State = ImageUploaded
	s.UpdatedAt = now
	c.log.Debug("image uploaded", "session", s.ID, "file", filename, "bytes", len(data))
	return nil
}

// Analyze classifies the uploaded image. On failure the error is kept for
// display and the session stays in ImageUploaded.
func (c *Controller) Analyze(ctx context.Context, s *Session) error {
	if s.State != ImageUploaded || s.Upload == nil {
		return stateError(s, "analyze")
	}

	start := time.Now()
	result, err := c.predictor.Predict(ctx, s.Upload.Data)
	c.opts.Metrics.RecordPrediction(c.opts.Backend, labelOf(result), time.Since(start), err)
	s.UpdatedAt = c.opts.Clock.Now()
	if err != nil {
		s.Err = err.Error()
		c.log.Warn("analysis failed", "session", s.ID, "file", s.Upload.Filename, "error", err)
		return err
	}

	s.Err = ""
	s.Result = result
	s.LowConfidence = result.Confidence < c.opts.Threshold
	s.State = Predicted
	if s.LowConfidence {
		c.opts.Metrics.RecordLowConfidence()
	}
	if !c.opts.RequireLowConfidence || s.LowConfidence {
		s.State = AwaitingFeedback
	}

	c.log.Info("image analyzed",
		"session", s.ID,
		"label", result.PredictedLabel,
		"confidence", result.Confidence,
		"low_confidence", s.LowConfidence)
	return nil
}

func labelOf(r *model.PredictionResult) string {
	if r == nil {
		return ""
	}
	return r.PredictedLabel
}

// RequestCorrection reveals the correction picker.
func (c *Controller) RequestCorrection(s *Session) error {
	if s.State != AwaitingFeedback {
		return stateError(s, "request a correction")
	}
	s.ShowCorrection = true
	s.UpdatedAt = c.opts.Clock.Now()
	return nil
}

// Confirm records the image under the predicted label.
func (c *Controller) Confirm(ctx context.Context, s *Session) (feedback.Record, error) {
	if s.State != AwaitingFeedback || s.Result == nil {
		return feedback.Record{}, stateError(s, "confirm")
	}
	return c.record(ctx, s, s.Result.PredictedLabel)
}

// Correct records the image under label. Choosing the predicted label is a confirmation.
func (c *Controller) Correct(ctx context.Context, s *Session, label string) (feedback.Record, error) {
	if s.State != AwaitingFeedback || s.Result == nil {
		return feedback.Record{}, stateError(s, "correct")
	}
	if !slices.Contains(c.labels, label) {
		return feedback.Record{}, errors.Newf("unknown label %q", label).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}
	return c.record(ctx, s, label)
}

func (c *Controller) record(ctx context.Context, s *Session, label string) (feedback.Record, error) {
	rec, err := c.recorder.Record(ctx, feedback.Submission{
		SessionID:        s.ID,
		Image:            s.Upload.Data,
		OriginalFilename: s.Upload.Filename,
		PredictedLabel:   s.Result.PredictedLabel,
		AssertedLabel:    label,
		Confidence:       s.Result.Confidence,
	})
	s.UpdatedAt = c.opts.Clock.Now()
	if err != nil {
		s.Err = fmt.Sprintf("could not save feedback: %v", err)
		return feedback.Record{}, err
	}

	s.Err = ""
	s.Feedback = &rec
	s.ShowCorrection = false
	s.State = FeedbackRecorded
	return rec, nil
}
