// Package model wraps the trained animal classifier behind a small API:
// load once, then predict a label and probability vector per image.
package model

import (
	"context"
	"fmt"
	"image"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/logging"
)

// Options describe how images are turned into input tensors.
type Options struct {
	ImageSize int
	Layout    string // nhwc or nchw
	Backend   string // reported in logs and metrics
}

// Classifier owns a loaded engine and its ordered label set. It is safe for
// concurrent use; forward passes are serialised.
type Classifier struct {
	engine Engine
	labels []string
	opts   Options

	mu     sync.Mutex
	closed bool
}

// New wraps an engine. The engine output length must match the label count.
func New(engine Engine, labels []string, opts Options) (*Classifier, error) {
	if len(labels) == 0 {
		return nil, errors.Newf("classifier needs at least one label").
			Component("model").
			Category(errors.CategoryModelInit).
			Build()
	}
	if engine.OutputLen() != len(labels) {
		return nil, errors.Newf("model outputs %d values but %d labels are configured", engine.OutputLen(), len(labels)).
			Component("model").
			Category(errors.CategoryModelInit).
			Context("labels", len(labels)).
			Build()
	}
	if opts.Layout == "" {
		opts.Layout = conf.LayoutNHWC
	}
	if opts.ImageSize > 0 && engine.InputLen() != 3*opts.ImageSize*opts.ImageSize {
		return nil, errors.Newf("model expects %d input values, image size %d gives %d",
			engine.InputLen(), opts.ImageSize, 3*opts.ImageSize*opts.ImageSize).
			Component("model").
			Category(errors.CategoryModelInit).
			Build()
	}
	return &Classifier{engine: engine, labels: slices.Clone(labels), opts: opts}, nil
}

// Load reads the label source and model artifact described by settings.
func Load(settings conf.ModelSettings) (*Classifier, error) {
	start := time.Now()
	log := logging.ForService("model")

	if _, err := os.Stat(settings.Path); err != nil {
		category := errors.CategoryModelInit
		if os.IsNotExist(err) {
			category = errors.CategoryArtifactNotFound
		}
		return nil, errors.New(fmt.Errorf("model artifact unavailable: %w", err)).
			Component("model").
			Category(category).
			Context("path", settings.Path).
			Build()
	}

	labels, meta, err := loadLabels(settings.Labels)
	if err != nil {
		return nil, err
	}

	size := settings.ImageSize
	if meta != nil && meta.ImageSize > 0 {
		size = meta.ImageSize
	}

	var engine Engine
	switch settings.Backend {
	case conf.BackendTFLite:
		engine, err = newTFLiteEngine(settings.Path, settings.Threads)
	default:
		inputShape, outputShape := tensorShapes(size, len(labels), settings.Layout)
		if meta != nil && len(meta.InputShape) > 0 && len(meta.OutputShape) > 0 {
			inputShape, outputShape = meta.InputShape, meta.OutputShape
		}
		engine, err = newONNXEngine(onnxOptions{
			modelPath:     settings.Path,
			sharedLibrary: settings.SharedLibrary,
			inputName:     settings.InputName,
			outputName:    settings.OutputName,
			inputShape:    inputShape,
			outputShape:   outputShape,
			threads:       settings.Threads,
		})
	}
	if err != nil {
		return nil, errors.New(err).
			Component("model").
			Category(errors.CategoryModelInit).
			Context("backend", settings.Backend).
			Context("path", settings.Path).
			Timing("model-load", time.Since(start)).
			Build()
	}

	c, err := New(engine, labels, Options{ImageSize: size, Layout: settings.Layout, Backend: settings.Backend})
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	log.Info("model loaded",
		"backend", settings.Backend,
		"path", settings.Path,
		"labels", len(labels),
		"image_size", size,
		"layout", c.opts.Layout,
		"duration_ms", time.Since(start).Milliseconds())
	return c, nil
}

func tensorShapes(size, classes int, layout string) (in, out []int64) {
	s := int64(size)
	in = []int64{1, s, s, 3}
	if layout == conf.LayoutNCHW {
		in = []int64{1, 3, s, s}
	}
	return in, []int64{1, int64(classes)}
}

// Labels returns the ordered label set.
func (c *Classifier) Labels() []string {
	return slices.Clone(c.labels)
}

// InputLen is the number of values PredictTensor expects.
func (c *Classifier) InputLen() int {
	return c.engine.InputLen()
}

// Backend names the inference backend.
func (c *Classifier) Backend() string {
	return c.opts.Backend
}

// Predict decodes and classifies an encoded PNG or JPEG image.
func (c *Classifier) Predict(ctx context.Context, data []byte) (*PredictionResult, error) {
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return c.PredictImage(ctx, img)
}

// PredictImage classifies an already decoded image.
func (c *Classifier) PredictImage(ctx context.Context, img image.Image) (*PredictionResult, error) {
	input, err := Preprocess(img, c.opts.ImageSize, c.opts.Layout)
	if err != nil {
		return nil, err
	}
	return c.PredictTensor(ctx, input)
}

// PredictTensor runs one forward pass over a preprocessed input tensor.
func (c *Classifier) PredictTensor(ctx context.Context, input []float32) (*PredictionResult, error) {
	if len(input) != c.engine.InputLen() {
		return nil, errors.Newf("expected %d values, got %d", c.engine.InputLen(), len(input)).
			Component("model").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.Newf("classifier is closed").
			Component("model").
			Category(errors.CategoryInference).
			Build()
	}
	raw, err := c.engine.Run(input)
	c.mu.Unlock()
	if err != nil {
		return nil, errors.New(err).
			Component("model").
			Category(errors.CategoryInference).
			Context("backend", c.opts.Backend).
			Build()
	}

	if len(raw) != len(c.labels) {
		return nil, errors.Newf("model returned %d values for %d labels", len(raw), len(c.labels)).
			Component("model").
			Category(errors.CategoryInference).
			Build()
	}

	probs, err := normalise(raw)
	if err != nil {
		return nil, errors.New(err).
			Component("model").
			Category(errors.CategoryInference).
			Build()
	}

	best := argmax(probs)
	result := &PredictionResult{
		PredictedLabel: c.labels[best],
		Confidence:     probs[best],
		Probabilities:  make(map[string]float64, len(c.labels)),
	}
	for i, label := range c.labels {
		result.Probabilities[label] = probs[i]
	}
	return result, nil
}

// Close releases the engine. Further predictions fail.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.engine.Close()
}
