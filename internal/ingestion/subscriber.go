package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Subscriber consumes JetStream subjects and feeds raw events into the
// processing shell. Each operation family gets its own durable consumer so
// the feeds scale independently.
type Subscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	log       zerolog.Logger
	consumers []jetstream.ConsumeContext
}

// RawEvent is a parsed-but-untyped message off the wire. The shell converts
// it into a typed event before handing it to the engine, then acks.
type RawEvent struct {
	Subject   string
	EventType string
	Data      []byte
	Received  time.Time
	Ack       func()
	Nak       func()
}

// SubjectConfig binds a subject filter to an event type and durable consumer.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects is the standard subject layout. Operations ride ordered
// subjects under their family stream; prices get their own stream since they
// tolerate gaps.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "debt.reserve.deposit.>", EventType: "ReserveDeposit", ConsumerName: "ledger-reserve-deposit", StreamName: "DEBT_RESERVE"},
		{Subject: "debt.reserve.withdraw.>", EventType: "ReserveWithdrawal", ConsumerName: "ledger-reserve-withdraw", StreamName: "DEBT_RESERVE"},
		{Subject: "debt.positions.open.>", EventType: "PositionOpen", ConsumerName: "ledger-pos-open", StreamName: "DEBT_POSITIONS"},
		{Subject: "debt.positions.add.>", EventType: "CollateralAdd", ConsumerName: "ledger-pos-add", StreamName: "DEBT_POSITIONS"},
		{Subject: "debt.positions.repay.>", EventType: "DebtRepay", ConsumerName: "ledger-pos-repay", StreamName: "DEBT_POSITIONS"},
		{Subject: "debt.positions.withdraw.collateral.>", EventType: "CollateralWithdraw", ConsumerName: "ledger-pos-wd-collateral", StreamName: "DEBT_POSITIONS"},
		{Subject: "debt.positions.withdraw.debt.>", EventType: "DebtWithdraw", ConsumerName: "ledger-pos-wd-debt", StreamName: "DEBT_POSITIONS"},
		{Subject: "debt.positions.close.>", EventType: "PositionClose", ConsumerName: "ledger-pos-close", StreamName: "DEBT_POSITIONS"},
		{Subject: "debt.positions.transfer.>", EventType: "PositionTransfer", ConsumerName: "ledger-pos-transfer", StreamName: "DEBT_POSITIONS"},
		{Subject: "debt.capitalize.partial.>", EventType: "Capitalize", ConsumerName: "ledger-cap-partial", StreamName: "DEBT_CAPITALIZE"},
		{Subject: "debt.capitalize.max.>", EventType: "CapitalizeMax", ConsumerName: "ledger-cap-max", StreamName: "DEBT_CAPITALIZE"},
		{Subject: "debt.capitalize.collapse.>", EventType: "DustCollapse", ConsumerName: "ledger-cap-collapse", StreamName: "DEBT_CAPITALIZE"},
		{Subject: "debt.rewards.accrue.>", EventType: "DebtRewardAccrual", ConsumerName: "ledger-rewards-accrue", StreamName: "DEBT_REWARDS"},
		{Subject: "debt.rewards.withdraw.>", EventType: "FeeWithdrawal", ConsumerName: "ledger-rewards-withdraw", StreamName: "DEBT_REWARDS"},
		{Subject: "debt.prices.>", EventType: "PriceUpdate", ConsumerName: "ledger-prices", StreamName: "DEBT_PRICES"},
		{Subject: "debt.params.>", EventType: "ParamsUpdate", ConsumerName: "ledger-params", StreamName: "DEBT_PARAMS"},
	}
}

func NewSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		js:        js,
		eventChan: eventChan,
		log:       log.With().Str("component", "ingestion").Logger(),
	}
}

// Subscribe creates durable consumers for every configured subject.
// Explicit acks, five delivery attempts, 30s ack wait.
func (s *Subscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		cfg := cfg
		consumer, err := s.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		cc, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawEvent{
				Subject:   msg.Subject(),
				EventType: cfg.EventType,
				Data:      msg.Data(),
				Received:  time.Now(),
				Ack:       func() { msg.Ack() },
				Nak:       func() { msg.Nak() },
			}
			select {
			case s.eventChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		s.consumers = append(s.consumers, cc)
		s.log.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}
	return nil
}

// EnsureStreams creates the inbound streams if missing. File storage,
// limits retention, 72h max age.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	streams := []jetstream.StreamConfig{
		{Name: "DEBT_RESERVE", Subjects: []string{"debt.reserve.>"}},
		{Name: "DEBT_POSITIONS", Subjects: []string{"debt.positions.>"}},
		{Name: "DEBT_CAPITALIZE", Subjects: []string{"debt.capitalize.>"}},
		{Name: "DEBT_REWARDS", Subjects: []string{"debt.rewards.>"}},
		{Name: "DEBT_PRICES", Subjects: []string{"debt.prices.>"}},
		{Name: "DEBT_PARAMS", Subjects: []string{"debt.params.>"}},
	}

	for _, cfg := range streams {
		cfg.Storage = jetstream.FileStorage
		cfg.Retention = jetstream.LimitsPolicy
		cfg.MaxAge = 72 * time.Hour
		cfg.Replicas = 1

		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}
	return nil
}

// Stop halts all consumers.
func (s *Subscriber) Stop() {
	for _, cc := range s.consumers {
		cc.Stop()
	}
	s.log.Info().Msg("subscribers stopped")
}

// Connect establishes the NATS connection and returns a JetStream handle.
func Connect(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
