package model

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
)

const testSize = 8

type fakeEngine struct {
	mu     sync.Mutex
	out    []float32
	err    error
	in     int
	calls  int
	inputs [][]float32
	closed bool
}

func (f *fakeEngine) Run(input []float32) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.inputs = append(f.inputs, append([]float32(nil), input...))
	if f.err != nil {
		return nil, f.err
	}
	return append([]float32(nil), f.out...), nil
}

func (f *fakeEngine) InputLen() int  { return f.in }
func (f *fakeEngine) OutputLen() int { return len(f.out) }
func (f *fakeEngine) Close() error   { f.closed = true; return nil }

func catOutput() []float32 {
	// butterfly, cat, chicken, cow, dog, elephant, horse, sheep, spider, squirrel
	return []float32{0.001, 0.97, 0.001, 0.001, 0.02, 0.001, 0.002, 0.001, 0.002, 0.001}
}

func newTestClassifier(t *testing.T, out []float32) (*Classifier, *fakeEngine) {
	t.Helper()
	engine := &fakeEngine{out: out, in: 3 * testSize * testSize}
	c, err := New(engine, BuiltinLabels, Options{ImageSize: testSize, Layout: conf.LayoutNHWC, Backend: "fake"})
	require.NoError(t, err)
	return c, engine
}

func encodePNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPredictCatExample(t *testing.T) {
	c, _ := newTestClassifier(t, catOutput())

	res, err := c.Predict(context.Background(), encodePNG(t, color.RGBA{200, 120, 40, 255}, 32, 24))
	require.NoError(t, err)

	assert.Equal(t, "cat", res.PredictedLabel)
	assert.InDelta(t, 0.97, res.Confidence, 1e-4)
	assert.Len(t, res.Probabilities, len(BuiltinLabels))

	var sum float64
	for _, label := range BuiltinLabels {
		p, ok := res.Probabilities[label]
		require.True(t, ok, label)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-4)
}

func TestPredictAppliesSoftmaxToLogits(t *testing.T) {
	logits := []float32{-1, 2, 0.5, 0, 3.5, -2, 1, 0, 0, 0}
	c, _ := newTestClassifier(t, logits)

	res, err := c.PredictTensor(context.Background(), make([]float32, c.InputLen()))
	require.NoError(t, err)

	assert.Equal(t, "dog", res.PredictedLabel)
	var sum float64
	for _, p := range res.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, res.Probabilities["dog"], res.Probabilities["cat"])
}

func TestPredictTieResolvesToLowestIndex(t *testing.T) {
	out := make([]float32, 10)
	out[3], out[7] = 0.5, 0.5
	c, _ := newTestClassifier(t, out)

	res, err := c.PredictTensor(context.Background(), make([]float32, c.InputLen()))
	require.NoError(t, err)
	assert.Equal(t, "cow", res.PredictedLabel)
}

func TestPredictIsDeterministic(t *testing.T) {
	c, engine := newTestClassifier(t, catOutput())
	img := encodePNG(t, color.RGBA{10, 200, 90, 255}, 17, 31)

	first, err := c.Predict(context.Background(), img)
	require.NoError(t, err)
	second, err := c.Predict(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, engine.inputs, 2)
	assert.Equal(t, engine.inputs[0], engine.inputs[1])
}

func TestPredictRejectsNonImage(t *testing.T) {
	c, engine := newTestClassifier(t, catOutput())

	_, err := c.Predict(context.Background(), []byte("definitely not a png"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPreprocessing)
	assert.Zero(t, engine.calls)
}

func TestPredictTensorValidatesLength(t *testing.T) {
	c, _ := newTestClassifier(t, catOutput())

	_, err := c.PredictTensor(context.Background(), make([]float32, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, err.Error(), fmt.Sprintf("expected %d values, got 5", 3*testSize*testSize))
}

func TestPredictEngineFailure(t *testing.T) {
	c, engine := newTestClassifier(t, catOutput())
	engine.err = fmt.Errorf("boom")

	_, err := c.PredictTensor(context.Background(), make([]float32, c.InputLen()))
	require.Error(t, err)
	assert.Equal(t, errors.CategoryInference, errors.CategoryOf(err))
}

func TestPredictHonoursCancelledContext(t *testing.T) {
	c, engine := newTestClassifier(t, catOutput())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.PredictTensor(ctx, make([]float32, c.InputLen()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, engine.calls)
}

func TestPredictAfterClose(t *testing.T) {
	c, engine := newTestClassifier(t, catOutput())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, engine.closed)

	_, err := c.PredictTensor(context.Background(), make([]float32, c.InputLen()))
	assert.Error(t, err)
}

func TestNewRejectsMismatchedOutput(t *testing.T) {
	engine := &fakeEngine{out: make([]float32, 7), in: 3 * testSize * testSize}
	_, err := New(engine, BuiltinLabels, Options{ImageSize: testSize})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryModelInit, errors.CategoryOf(err))
}

func TestNewRejectsMismatchedInput(t *testing.T) {
	engine := &fakeEngine{out: catOutput(), in: 42}
	_, err := New(engine, BuiltinLabels, Options{ImageSize: testSize})
	assert.Error(t, err)
}

func TestLoadMissingArtifact(t *testing.T) {
	settings := conf.Default().Model
	settings.Path = filepath.Join(t.TempDir(), "missing.onnx")

	_, err := Load(settings)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrArtifactNotFound)
}

func TestLoadMissingLabelSource(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(modelPath, []byte("onnx"), 0o644))

	for _, source := range []string{conf.LabelSourceMetadata, conf.LabelSourceFile} {
		t.Run(source, func(t *testing.T) {
			settings := conf.Default().Model
			settings.Path = modelPath
			settings.Labels.Source = source
			settings.Labels.Path = filepath.Join(dir, "nope")

			_, err := Load(settings)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrLabelSourceNotFound)
		})
	}
}

func TestPredictionResultRanked(t *testing.T) {
	res := &PredictionResult{Probabilities: map[string]float64{
		"cat": 0.5, "dog": 0.2, "cow": 0.2, "sheep": 0.1,
	}}

	ranked := res.Ranked()
	require.Len(t, ranked, 4)
	assert.Equal(t, "cat", ranked[0].Label)
	assert.Equal(t, "cow", ranked[1].Label)
	assert.Equal(t, "dog", ranked[2].Label)
	assert.Len(t, res.Top(2), 2)
	assert.Len(t, res.Top(10), 4)
}

func TestNormalise(t *testing.T) {
	probs, err := normalise([]float32{0.2, 0.3, 0.5})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 0.3, 0.5}, probs, 1e-6)

	probs, err = normalise([]float32{0, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, probs, 1e-9)

	_, err = normalise([]float32{float32(math.NaN())})
	assert.Error(t, err)

	_, err = normalise(nil)
	assert.Error(t, err)
}
