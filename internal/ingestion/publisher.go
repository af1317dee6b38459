package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// OutboundPublisher publishes applied actions to NATS for downstream
// consumers, after persistence is confirmed. Subjects follow the
// pattern mena.ledger.applied.{kind}.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableAction
}

// PublishableAction is an applied action ready for outbound publishing.
type PublishableAction struct {
	Sequence       int64           `json:"sequence"`
	Kind           string          `json:"kind"`
	Caller         string          `json:"caller"`
	IdempotencyKey string          `json:"idempotency_key"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      []byte          `json:"state_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan PublishableAction) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case act, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, act); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", act.Sequence, err)
				// Non-fatal: downstream consumers can query the action log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, act PublishableAction) error {
	data, err := json.Marshal(act)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	subject := fmt.Sprintf("mena.ledger.applied.%s", act.Kind)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound applied-actions stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "MENA_LEDGER_APPLIED",
		Subjects:  []string{"mena.ledger.applied.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream MENA_LEDGER_APPLIED")
	return nil
}
