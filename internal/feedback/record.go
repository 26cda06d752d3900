// Package feedback persists user-confirmed and user-corrected images to the
// labeled dataset and keeps the append-only feedback log.
package feedback

import (
	"context"
	"time"
)

// Outcome tells whether the user agreed with the prediction.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeCorrected Outcome = "corrected"
)

// Formats used in the feedback log and dataset file names.
const (
	LogTimeFormat  = "2006-01-02 15:04:05.000000"
	FileTimeFormat = "20060102_150405"
)

// Record is one persisted feedback event.
type Record struct {
	Timestamp      time.Time `json:"timestamp"`
	AssertedLabel  string    `json:"asserted_label"`
	PredictedLabel string    `json:"predicted_label"`
	Outcome        Outcome   `json:"outcome"`
	Filename       string    `json:"filename"` // relative to the dataset root
	SessionID      string    `json:"session_id,omitempty"`
	Confidence     float64   `json:"confidence"`
}

// Submission is what a caller hands to Recorder.Record.
type Submission struct {
	SessionID        string
	Image            []byte
	OriginalFilename string
	PredictedLabel   string
	AssertedLabel    string
	Confidence       float64
}

// Outcome derives the outcome from the two labels.
func (s Submission) Outcome() Outcome {
	if s.AssertedLabel == s.PredictedLabel {
		return OutcomeConfirmed
	}
	return OutcomeCorrected
}

// Sink receives records after they are on disk. Sink failures are logged
// and never fail the submission.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec Record, image []byte) error
}

// logLine renders rec the way the feedback log stores it.
func logLine(rec Record, base string) string {
	ts := rec.Timestamp.Format(LogTimeFormat)
	if rec.Outcome == OutcomeCorrected {
		return ts + ": CORRECTION - Predicted: " + rec.PredictedLabel + ", Actual: " + rec.AssertedLabel + "\n"
	}
	return ts + ": " + rec.AssertedLabel + " - " + base + " - VALIDATED\n"
}
