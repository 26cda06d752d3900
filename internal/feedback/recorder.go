package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/logging"
	"github.com/Brownie44l1/anidex/internal/observability/metrics"
)

const (
	maxCollisionSuffix = 1000
	sinkTimeout        = 10 * time.Second
)

// Recorder writes dataset entries and feedback log lines.
type Recorder struct {
	root      string
	logPath   string
	updateLog string
	now       func() time.Time
	sinks     []Sink
	metrics   *metrics.Metrics
	log       *slog.Logger

	mu sync.Mutex
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSinks adds best-effort sinks.
func WithSinks(sinks ...Sink) Option {
	return func(r *Recorder) {
		for _, s := range sinks {
			if s != nil {
				r.sinks = append(r.sinks, s)
			}
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithMetrics records feedback counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates the dataset root if needed.
func NewRecorder(settings conf.FeedbackSettings, opts ...Option) (*Recorder, error) {
	if settings.DatasetRoot == "" {
		return nil, errors.Newf("dataset root is empty").
			Component("feedback").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.MkdirAll(settings.DatasetRoot, 0o755); err != nil {
		return nil, errors.New(fmt.Errorf("failed to create dataset root: %w", err)).
			Component("feedback").
			Category(errors.CategoryPersistence).
			Context("path", settings.DatasetRoot).
			Build()
	}

	r := &Recorder{
		root:      settings.DatasetRoot,
		logPath:   settings.LogPath,
		updateLog: settings.UpdateLog,
		now:       time.Now,
		log:       logging.ForService("feedback"),
	}
	if r.logPath == "" {
		r.logPath = filepath.Join(r.root, "user_feedback.log")
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record stores the image under the asserted label and appends one log line.
// A log failure removes the image again so both stay consistent.
func (r *Recorder) Record(ctx context.Context, sub Submission) (Record, error) {
	if err := validLabel(sub.AssertedLabel); err != nil {
		return Record{}, err
	}
	if len(sub.Image) == 0 {
		return Record{}, errors.Newf("no image to record").
			Component("feedback").
			Category(errors.CategoryValidation).
			Build()
	}

	rec := Record{
		AssertedLabel:  sub.AssertedLabel,
		PredictedLabel: sub.PredictedLabel,
		Outcome:        sub.Outcome(),
		SessionID:      sub.SessionID,
		Confidence:     sub.Confidence,
	}

	r.mu.Lock()
	rec.Timestamp = r.now()
	path, err := r.writeEntry(rec, sub)
	if err != nil {
		r.mu.Unlock()
		r.metrics.RecordFeedbackError("dataset")
		return Record{}, err
	}

	base := filepath.Base(path)
	if err := appendLine(r.logPath, logLine(rec, base)); err != nil {
		_ = os.Remove(path)
		r.mu.Unlock()
		r.metrics.RecordFeedbackError("log")
		return Record{}, errors.New(fmt.Errorf("failed to append feedback log: %w", err)).
			Component("feedback").
			Category(errors.CategoryPersistence).
			Context("path", r.logPath).
			Build()
	}

	if rec.Outcome == OutcomeConfirmed && r.updateLog != "" {
		line := rec.Timestamp.Format(LogTimeFormat) + ": Dataset update requested\n"
		if err := appendLine(r.updateLog, line); err != nil {
			r.log.Warn("failed to request dataset update", "path", r.updateLog, "error", err)
		}
	}
	r.mu.Unlock()

	rec.Filename = filepath.ToSlash(filepath.Join(rec.AssertedLabel, base))
	r.metrics.RecordFeedback(string(rec.Outcome), rec.AssertedLabel)
	r.log.Info("feedback recorded",
		"outcome", rec.Outcome,
		"label", rec.AssertedLabel,
		"predicted", rec.PredictedLabel,
		"file", rec.Filename)

	r.publish(ctx, rec, sub.Image)
	return rec, nil
}

// writeEntry creates the dataset file without ever replacing an existing one.
func (r *Recorder) writeEntry(rec Record, sub Submission) (string, error) {
	dir := filepath.Join(r.root, rec.AssertedLabel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", r.persistenceErr("failed to create label directory", dir, err)
	}

	name := sanitizeFilename(sub.OriginalFilename)
	ext := filepath.Ext(name)
	stem := rec.Timestamp.Format(FileTimeFormat) + "_" + strings.TrimSuffix(name, ext)

	for i := 0; i <= maxCollisionSuffix; i++ {
		candidate := stem + ext
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", r.persistenceErr("failed to create dataset entry", path, err)
		}
		if _, err := f.Write(sub.Image); err != nil {
			f.Close()
			os.Remove(path)
			return "", r.persistenceErr("failed to write dataset entry", path, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", r.persistenceErr("failed to close dataset entry", path, err)
		}
		return path, nil
	}
	return "", r.persistenceErr("no free dataset file name", filepath.Join(dir, stem+ext), os.ErrExist)
}

func (r *Recorder) persistenceErr(msg, path string, err error) error {
	return errors.New(fmt.Errorf("%s: %w", msg, err)).
		Component("feedback").
		Category(errors.CategoryPersistence).
		Context("path", path).
		Build()
}

func (r *Recorder) publish(ctx context.Context, rec Record, image []byte) {
	for _, s := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := s.Publish(sctx, rec, image)
		cancel()
		if err != nil {
			r.metrics.RecordFeedbackError(s.Name())
			r.log.Warn("feedback sink failed", "sink", s.Name(), "file", rec.Filename, "error", err)
		}
	}
}

func appendLine(path, line string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func validLabel(label string) error {
	if label == "" || label == "." || label == ".." || strings.ContainsAny(label, `/\`) {
		return errors.Newf("invalid label %q", label).
			Component("feedback").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// sanitizeFilename keeps only the base name of an uploaded file.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "upload"
	}
	return name
}
