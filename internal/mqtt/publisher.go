package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/feedback"
)

// Event is the JSON payload published for each feedback record.
type Event struct {
	Timestamp      string  `json:"timestamp"`
	Outcome        string  `json:"outcome"`
	AssertedLabel  string  `json:"asserted_label"`
	PredictedLabel string  `json:"predicted_label"`
	Confidence     float64 `json:"confidence"`
	Filename       string  `json:"filename"`
	SessionID      string  `json:"session_id,omitempty"`
}

// Publisher turns feedback records into MQTT messages. It implements feedback.Sink.
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher publishes to topic through client.
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Name implements feedback.Sink.
func (p *Publisher) Name() string { return "mqtt" }

// Publish implements feedback.Sink. The image itself is not sent.
func (p *Publisher) Publish(ctx context.Context, rec feedback.Record, _ []byte) error {
	payload, err := json.Marshal(Event{
		Timestamp:      rec.Timestamp.UTC().Format(time.RFC3339Nano),
		Outcome:        string(rec.Outcome),
		AssertedLabel:  rec.AssertedLabel,
		PredictedLabel: rec.PredictedLabel,
		Confidence:     rec.Confidence,
		Filename:       rec.Filename,
		SessionID:      rec.SessionID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode feedback event: %w", err)
	}

	if err := p.client.Publish(ctx, p.topic, string(payload)); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryIntegration).
			Context("topic", p.topic).
			Build()
	}
	return nil
}

// Close disconnects the client.
func (p *Publisher) Close() {
	p.client.Disconnect()
}
