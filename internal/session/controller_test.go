package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/feedback"
	"github.com/Brownie44l1/anidex/internal/model"
)

var labels = []string{
	"butterfly", "cat", "chicken", "cow", "dog",
	"elephant", "horse", "sheep", "spider", "squirrel",
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testClock = fixedClock{t: time.Date(2024, 6, 1, 9, 30, 0, 0, time.Local)}

type fakePredictor struct {
	result *model.PredictionResult
	err    error
	calls  int
}

func (f *fakePredictor) Predict(context.Context, []byte) (*model.PredictionResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeRecorder struct {
	subs []feedback.Submission
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, sub feedback.Submission) (feedback.Record, error) {
	if f.err != nil {
		return feedback.Record{}, f.err
	}
	f.subs = append(f.subs, sub)
	return feedback.Record{
		AssertedLabel:  sub.AssertedLabel,
		PredictedLabel: sub.PredictedLabel,
		Outcome:        sub.Outcome(),
		Filename:       sub.AssertedLabel + "/" + sub.OriginalFilename,
	}, nil
}

func catResult(confidence float64) *model.PredictionResult {
	probs := make(map[string]float64, len(labels))
	rest := (1 - confidence) / float64(len(labels)-1)
	for _, l := range labels {
		probs[l] = rest
	}
	probs["cat"] = confidence
	return &model.PredictionResult{PredictedLabel: "cat", Confidence: confidence, Probabilities: probs}
}

func newController(p Predictor, r Recorder, opts Options) *Controller {
	if opts.Threshold == 0 {
		opts.Threshold = conf.DefaultConfidenceThreshold
	}
	opts.Clock = testClock
	return NewController(p, r, labels, opts)
}

func analyzed(t *testing.T, c *Controller) *Session {
	t.Helper()
	s := New("s1", testClock.Now())
	require.NoError(t, c.Upload(s, "kitty.png", []byte("png")))
	require.NoError(t, c.Analyze(context.Background(), s))
	return s
}

func TestUploadAcceptsImageExtensions(t *testing.T) {
	c := newController(&fakePredictor{}, &fakeRecorder{}, Options{})

	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.Jpeg"} {
		s := New("s", testClock.Now())
		require.NoError(t, c.Upload(s, name, []byte("x")), name)
		assert.Equal(t, ImageUploaded, s.State)
		assert.Equal(t, name, s.Upload.Filename)
	}
}

func TestUploadRejectionLeavesSessionUnchanged(t *testing.T) {
	c := newController(&fakePredictor{result: catResult(0.97)}, &fakeRecorder{}, Options{})
	s := analyzed(t, c)
	before := s.clone()

	for _, name := range []string{"notes.txt", "image.gif", "noext"} {
		err := c.Upload(s, name, []byte("x"))
		assert.ErrorIs(t, err, errors.ErrValidation, name)
	}
	assert.ErrorIs(t, c.Upload(s, "empty.png", nil), errors.ErrValidation)
	assert.Equal(t, before, s)
}

func TestAnalyzeHighConfidence(t *testing.T) {
	p := &fakePredictor{result: catResult(0.97)}
	c := newController(p, &fakeRecorder{}, Options{})

	s := analyzed(t, c)
	assert.Equal(t, AwaitingFeedback, s.State)
	assert.False(t, s.LowConfidence)
	assert.Equal(t, "cat", s.Result.PredictedLabel)
	assert.Empty(t, s.Err)
	assert.Equal(t, 1, p.calls)
}

func TestAnalyzeLowConfidenceStillAwaitsFeedback(t *testing.T) {
	c := newController(&fakePredictor{result: catResult(0.6)}, &fakeRecorder{}, Options{})

	s := analyzed(t, c)
	assert.Equal(t, AwaitingFeedback, s.State)
	assert.True(t, s.LowConfidence)
}

func TestAnalyzeRequireLowConfidenceGating(t *testing.T) {
	c := newController(&fakePredictor{result: catResult(0.99)}, &fakeRecorder{}, Options{RequireLowConfidence: true})
	s := analyzed(t, c)
	assert.Equal(t, Predicted, s.State)

	_, err := c.Confirm(context.Background(), s)
	assert.ErrorIs(t, err, errors.ErrState)

	c = newController(&fakePredictor{result: catResult(0.5)}, &fakeRecorder{}, Options{RequireLowConfidence: true})
	s = analyzed(t, c)
	assert.Equal(t, AwaitingFeedback, s.State)
}

func TestAnalyzeFailureStaysUploaded(t *testing.T) {
	failure := errors.Newf("invalid image format").Component("model").Category(errors.CategoryPreprocessing).Build()
	c := newController(&fakePredictor{err: failure}, &fakeRecorder{}, Options{})

	s := New("s", testClock.Now())
	require.NoError(t, c.Upload(s, "broken.png", []byte("not an image")))
	err := c.Analyze(context.Background(), s)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPreprocessing)
	assert.Equal(t, ImageUploaded, s.State)
	assert.Nil(t, s.Result)
	assert.Contains(t, s.Err, "invalid image format")
}

func TestAnalyzeRequiresUpload(t *testing.T) {
	c := newController(&fakePredictor{result: catResult(0.97)}, &fakeRecorder{}, Options{})

	s := New("s", testClock.Now())
	assert.ErrorIs(t, c.Analyze(context.Background(), s), errors.ErrState)

	s = analyzed(t, c)
	assert.ErrorIs(t, c.Analyze(context.Background(), s), errors.ErrState)
}

func TestConfirm(t *testing.T) {
	r := &fakeRecorder{}
	c := newController(&fakePredictor{result: catResult(0.97)}, r, Options{})
	s := analyzed(t, c)

	rec, err := c.Confirm(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, feedback.OutcomeConfirmed, rec.Outcome)
	assert.Equal(t, FeedbackRecorded, s.State)
	require.Len(t, r.subs, 1)
	assert.Equal(t, "cat", r.subs[0].AssertedLabel)
	assert.Equal(t, "kitty.png", r.subs[0].OriginalFilename)
	assert.Equal(t, "s1", r.subs[0].SessionID)

	_, err = c.Confirm(context.Background(), s)
	assert.ErrorIs(t, err, errors.ErrState)
	assert.Len(t, r.subs, 1)
}

func TestCorrect(t *testing.T) {
	r := &fakeRecorder{}
	c := newController(&fakePredictor{result: catResult(0.7)}, r, Options{})
	s := analyzed(t, c)

	require.NoError(t, c.RequestCorrection(s))
	assert.True(t, s.ShowCorrection)
	assert.Equal(t, AwaitingFeedback, s.State)

	_, err := c.Correct(context.Background(), s, "unicorn")
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Equal(t, AwaitingFeedback, s.State)

	rec, err := c.Correct(context.Background(), s, "dog")
	require.NoError(t, err)
	assert.Equal(t, feedback.OutcomeCorrected, rec.Outcome)
	assert.Equal(t, "cat", rec.PredictedLabel)
	assert.Equal(t, "dog", rec.AssertedLabel)
	assert.Equal(t, FeedbackRecorded, s.State)
	assert.False(t, s.ShowCorrection)
}

func TestCorrectWithPredictedLabelConfirms(t *testing.T) {
	r := &fakeRecorder{}
	c := newController(&fakePredictor{result: catResult(0.7)}, r, Options{})
	s := analyzed(t, c)

	rec, err := c.Correct(context.Background(), s, "cat")
	require.NoError(t, err)
	assert.Equal(t, feedback.OutcomeConfirmed, rec.Outcome)
}

func TestRequestCorrectionOutsideFeedback(t *testing.T) {
	c := newController(&fakePredictor{}, &fakeRecorder{}, Options{})
	s := New("s", testClock.Now())
	assert.ErrorIs(t, c.RequestCorrection(s), errors.ErrState)
	assert.False(t, s.ShowCorrection)
}

func TestPersistenceFailureKeepsAwaitingFeedback(t *testing.T) {
	failure := errors.Newf("disk full").Component("feedback").Category(errors.CategoryPersistence).Build()
	r := &fakeRecorder{err: failure}
	c := newController(&fakePredictor{result: catResult(0.97)}, r, Options{})
	s := analyzed(t, c)

	_, err := c.Confirm(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPersistence)
	assert.Equal(t, AwaitingFeedback, s.State)
	assert.Contains(t, s.Err, "disk full")
	assert.Nil(t, s.Feedback)

	r.err = nil
	_, err = c.Confirm(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, s.Err)
}

func TestUploadAfterFeedbackResets(t *testing.T) {
	c := newController(&fakePredictor{result: catResult(0.7)}, &fakeRecorder{}, Options{})
	s := analyzed(t, c)
	require.NoError(t, c.RequestCorrection(s))
	_, err := c.Correct(context.Background(), s, "dog")
	require.NoError(t, err)

	require.NoError(t, c.Upload(s, "next.jpg", []byte("jpg")))
	assert.Equal(t, ImageUploaded, s.State)
	assert.Nil(t, s.Result)
	assert.Nil(t, s.Feedback)
	assert.False(t, s.ShowCorrection)
	assert.False(t, s.LowConfidence)
	assert.Empty(t, s.Err)
	assert.Equal(t, "next.jpg", s.Upload.Filename)
}

func TestWorkflowWithRecorderOnDisk(t *testing.T) {
	root := t.TempDir()
	rec, err := feedback.NewRecorder(conf.FeedbackSettings{
		DatasetRoot: root,
		LogPath:     filepath.Join(root, "user_feedback.log"),
	}, feedback.WithClock(testClock.Now))
	require.NoError(t, err)

	c := newController(&fakePredictor{result: catResult(0.97)}, rec, Options{})
	s := analyzed(t, c)
	_, err = c.Confirm(context.Background(), s)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "cat"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "20240601_093000_kitty.png", entries[0].Name())

	log, err := os.ReadFile(filepath.Join(root, "user_feedback.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(log)), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], ": cat - 20240601_093000_kitty.png - VALIDATED"), lines[0])
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		Idle: "idle", ImageUploaded: "image_uploaded", Predicted: "predicted",
		AwaitingFeedback: "awaiting_feedback", FeedbackRecorded: "feedback_recorded",
		State(42): "unknown",
	} {
		assert.Equal(t, want, st.String(), fmt.Sprint(int(st)))
	}
}
