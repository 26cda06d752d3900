// Package session drives the interactive classify-and-feedback workflow as
// an explicit per-user state machine.
package session

import (
	"time"

	"github.com/Brownie44l1/anidex/internal/feedback"
	"github.com/Brownie44l1/anidex/internal/model"
)

// State is the position of a session in the workflow.
type State int

const (
	Idle State = iota
	ImageUploaded
	Predicted
	AwaitingFeedback
	FeedbackRecorded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ImageUploaded:
		return "image_uploaded"
	case Predicted:
		return "predicted"
	case AwaitingFeedback:
		return "awaiting_feedback"
	case FeedbackRecorded:
		return "feedback_recorded"
	}
	return "unknown"
}

// Upload is the image currently held by a session.
type Upload struct {
	Filename   string
	Data       []byte
	UploadedAt time.Time
}

// Session is the state of one dashboard user.
type Session struct {
	ID             string
	State          State
	Upload         *Upload
	Result         *model.PredictionResult
	LowConfidence  bool
	ShowCorrection bool
	Feedback       *feedback.Record
	Err            string // last error shown to the user
	UpdatedAt      time.Time
}

// New returns an idle session.
func New(id string, now time.Time) *Session {
	return &Session{ID: id, State: Idle, UpdatedAt: now}
}

// clone returns a copy that shares no mutable maps or slices with s.
func (s *Session) clone() *Session {
	c := *s
	if s.Upload != nil {
		u := *s.Upload
		u.Data = append([]byte(nil), s.Upload.Data...)
		c.Upload = &u
	}
	if s.Result != nil {
		r := *s.Result
		r.Probabilities = make(map[string]float64, len(s.Result.Probabilities))
		for k, v := range s.Result.Probabilities {
			r.Probabilities[k] = v
		}
		c.Result = &r
	}
	if s.Feedback != nil {
		f := *s.Feedback
		c.Feedback = &f
	}
	return &c
}

// reset clears everything derived from a previous image.
func (s *Session) reset() {
	s.Result = nil
	s.LowConfidence = false
	s.ShowCorrection = false
	s.Feedback = nil
	s.Err = ""
}
