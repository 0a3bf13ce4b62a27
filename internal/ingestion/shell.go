package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"DebtLedger/internal/core"
	"DebtLedger/internal/observability"
)

// Shell is the bridge between the NATS consumers and the single-threaded
// engine. It parses raw messages, feeds typed events into the engine, and
// acks. Rejections are deterministic, so a rejected or unparseable message
// is acked rather than redelivered; only a cancelled context naks.
type Shell struct {
	engine    *core.Engine
	eventChan <-chan RawEvent
	snapReq   chan chan *core.SnapshotState
	metrics   *observability.Metrics
	log       zerolog.Logger
	done      chan struct{}
}

func NewShell(engine *core.Engine, eventChan <-chan RawEvent, metrics *observability.Metrics, log zerolog.Logger) *Shell {
	return &Shell{
		engine:    engine,
		eventChan: eventChan,
		snapReq:   make(chan chan *core.SnapshotState),
		metrics:   metrics,
		log:       log.With().Str("component", "shell").Logger(),
		done:      make(chan struct{}),
	}
}

// Run drives the engine until the context is cancelled or the channel
// closes. This is the only goroutine that touches the engine while running.
func (s *Shell) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-s.eventChan:
			if !ok {
				return
			}
			s.handle(raw)
		case reply := <-s.snapReq:
			reply <- s.engine.CreateSnapshotState()
		}
	}
}

// Done closes once Run has returned and no further ProcessEvent calls
// will be made.
func (s *Shell) Done() <-chan struct{} {
	return s.done
}

// Snapshot captures engine state between events. The capture happens on the
// Run goroutine, so it never observes a half-applied event.
func (s *Shell) Snapshot(ctx context.Context) (*core.SnapshotState, error) {
	reply := make(chan *core.SnapshotState, 1)
	select {
	case s.snapReq <- reply:
	case <-s.done:
		return nil, errors.New("shell stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Shell) handle(raw RawEvent) {
	evt, err := ParseRawEvent(raw)
	if err != nil {
		// Malformed payloads never become valid on redelivery.
		s.log.Error().Err(err).Str("subject", raw.Subject).Msg("dropping unparseable message")
		raw.Ack()
		return
	}

	s.metrics.IngestToApply.WithLabelValues(raw.EventType).Observe(time.Since(raw.Received).Seconds())

	if err := s.engine.ProcessEvent(evt); err != nil {
		// The engine already counted the rejection; redelivery would be
		// rejected identically.
		s.log.Warn().Err(err).
			Str("event_type", raw.EventType).
			Str("idempotency_key", evt.IdempotencyKey()).
			Msg("event rejected")
	}
	raw.Ack()
}
