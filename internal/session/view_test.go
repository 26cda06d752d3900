package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/anidex/internal/feedback"
	"github.com/Brownie44l1/anidex/internal/pokedex"
)

func TestViewIdle(t *testing.T) {
	vm := View(New("s", testClock.Now()), pokedex.Default(), labels, 0.95)
	assert.Equal(t, "idle", vm.State)
	assert.False(t, vm.HasUpload)
	assert.False(t, vm.HasResult)
	assert.Empty(t, vm.Top)
}

func TestViewAwaitingFeedback(t *testing.T) {
	s := New("s", testClock.Now())
	s.State = AwaitingFeedback
	s.Upload = &Upload{Filename: "kitty.png", Data: []byte("x")}
	s.Result = catResult(0.97)

	vm := View(s, pokedex.Default(), labels, 0.95)
	assert.True(t, vm.HasResult)
	assert.Equal(t, "🐱 CAT", vm.Title)
	assert.Equal(t, "97.0%", vm.Confidence)
	assert.Equal(t, "#002", vm.Card.Code())
	assert.True(t, vm.AskFeedback)
	assert.False(t, vm.ShowCorrection)
	assert.Empty(t, vm.Options)
	assert.Empty(t, vm.Warning)

	require.Len(t, vm.Top, 5)
	assert.Equal(t, "cat", vm.Top[0].Label)
	assert.Equal(t, "97.0%", vm.Top[0].Text)
	require.Len(t, vm.All, len(labels))
	assert.Equal(t, "🐱 Cat", vm.All[0].Display)
	assert.Equal(t, "97.00%", vm.All[0].Text)
}

func TestViewLowConfidenceAndCorrection(t *testing.T) {
	s := New("s", testClock.Now())
	s.State = AwaitingFeedback
	s.Upload = &Upload{Filename: "kitty.png"}
	s.Result = catResult(0.723)
	s.LowConfidence = true
	s.ShowCorrection = true

	vm := View(s, pokedex.Default(), labels, 0.95)
	assert.True(t, vm.LowConfidence)
	assert.Contains(t, vm.Warning, "The confidence is 72.3%, which is below 95%.")
	require.Len(t, vm.Options, len(labels))
	assert.True(t, vm.Options[1].Current)
	assert.Equal(t, "🦋 Butterfly", vm.Options[0].Display)
}

func TestViewFeedbackNotices(t *testing.T) {
	s := New("s", testClock.Now())
	s.State = FeedbackRecorded
	s.Result = catResult(0.97)
	s.Feedback = &feedback.Record{Outcome: feedback.OutcomeConfirmed, AssertedLabel: "cat"}

	vm := View(s, pokedex.Default(), labels, 0.95)
	assert.True(t, vm.FeedbackGiven)
	assert.False(t, vm.AskFeedback)
	assert.Equal(t, "Thank you for your feedback! Image added to dataset.", vm.Notice)

	s.Feedback = &feedback.Record{Outcome: feedback.OutcomeCorrected, AssertedLabel: "dog", PredictedLabel: "cat"}
	vm = View(s, pokedex.Default(), labels, 0.95)
	assert.Equal(t, "Thank you for the correction! Image saved as Dog.", vm.Notice)
}

func TestViewDoesNotMutateSession(t *testing.T) {
	s := New("s", testClock.Now())
	s.State = AwaitingFeedback
	s.Result = catResult(0.5)
	s.LowConfidence = true
	before := s.clone()

	_ = View(s, pokedex.Default(), labels, 0.95)
	assert.Equal(t, before, s)
}
