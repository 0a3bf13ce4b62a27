package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"DebtLedger/internal/core"
)

// Publisher emits processed events to NATS for downstream consumers after
// the engine has accepted them. Subjects follow
// debt.ledger.events.{event_type}. A failed publish is non-fatal since
// consumers can fall back to querying the event log.
type Publisher struct {
	js    jetstream.JetStream
	input <-chan core.EngineOutput
	log   zerolog.Logger
}

// OutboundEvent is the wire form of a processed event.
type OutboundEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Partition      string          `json:"partition"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      []byte          `json:"state_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewPublisher(js jetstream.JetStream, input <-chan core.EngineOutput, log zerolog.Logger) *Publisher {
	return &Publisher{
		js:    js,
		input: input,
		log:   log.With().Str("component", "publisher").Logger(),
	}
}

func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-p.input:
			if !ok {
				return
			}
			if err := p.publish(ctx, out); err != nil {
				p.log.Warn().Err(err).
					Int64("sequence", out.Envelope.Sequence).
					Msg("outbound publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out core.EngineOutput) error {
	env := out.Envelope
	data, err := json.Marshal(OutboundEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Partition:      env.Partition,
		Payload:        env.Payload,
		StateHash:      env.StateHash[:],
		Timestamp:      env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal outbound event: %w", err)
	}

	subject := fmt.Sprintf("debt.ledger.events.%s", env.EventType.String())
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the stream backing outbound subjects.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "DEBT_LEDGER_EVENTS",
		Subjects:  []string{"debt.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
