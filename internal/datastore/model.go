package datastore

import (
	"time"

	"github.com/Brownie44l1/anidex/internal/feedback"
)

// FeedbackEntry indexes one feedback record.
type FeedbackEntry struct {
	ID             uint      `gorm:"primaryKey"`
	CreatedAt      time.Time
	Timestamp      time.Time `gorm:"index"`
	SessionID      string    `gorm:"size:64;index"`
	AssertedLabel  string    `gorm:"size:64;index;not null"`
	PredictedLabel string    `gorm:"size:64;not null"`
	Outcome        string    `gorm:"size:16;not null"`
	Filename       string    `gorm:"size:512;not null"`
	Confidence     float64
}

func entryFromRecord(rec feedback.Record) FeedbackEntry {
	return FeedbackEntry{
		Timestamp:      rec.Timestamp,
		SessionID:      rec.SessionID,
		AssertedLabel:  rec.AssertedLabel,
		PredictedLabel: rec.PredictedLabel,
		Outcome:        string(rec.Outcome),
		Filename:       rec.Filename,
		Confidence:     rec.Confidence,
	}
}

func (e FeedbackEntry) record() feedback.Record {
	return feedback.Record{
		Timestamp:      e.Timestamp,
		AssertedLabel:  e.AssertedLabel,
		PredictedLabel: e.PredictedLabel,
		Outcome:        feedback.Outcome(e.Outcome),
		Filename:       e.Filename,
		SessionID:      e.SessionID,
		Confidence:     e.Confidence,
	}
}

// LabelStats counts feedback per asserted label.
type LabelStats struct {
	Label     string `json:"label"`
	Confirmed int64  `json:"confirmed"`
	Corrected int64  `json:"corrected"`
}
