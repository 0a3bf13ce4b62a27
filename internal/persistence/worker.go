package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"DebtLedger/internal/core"
	"DebtLedger/internal/ledger"
	"DebtLedger/internal/observability"
)

const (
	defaultBatchSize     = 256
	defaultFlushInterval = 50 * time.Millisecond
	maxRetryBackoff      = 5 * time.Second
)

// Worker drains the engine's persist channel, batches rows, and flushes them
// to Postgres in a single transaction per batch. The engine blocks on this
// channel, so durability lag translates directly into backpressure upstream.
type Worker struct {
	writer  *Writer
	input   <-chan core.EngineOutput
	metrics *observability.Metrics
	log     zerolog.Logger

	batchSize     int
	flushInterval time.Duration

	events   []EventRow
	journals []JournalRow
	lastSeq  int64

	done chan struct{}
}

func NewWorker(writer *Writer, input <-chan core.EngineOutput, metrics *observability.Metrics, log zerolog.Logger) *Worker {
	return &Worker{
		writer:        writer,
		input:         input,
		metrics:       metrics,
		log:           log.With().Str("component", "persistence").Logger(),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		done:          make(chan struct{}),
	}
}

// Run consumes engine output until the input channel closes or the context
// is cancelled. Buffered rows are flushed before returning.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case out, ok := <-w.input:
			if !ok {
				w.flushWithRetry(ctx)
				w.log.Info().Int64("last_sequence", w.lastSeq).Msg("persist channel closed, worker stopping")
				return
			}
			w.buffer(out)
			if len(w.events) >= w.batchSize {
				w.flushWithRetry(ctx)
			}
		case <-ticker.C:
			w.flushWithRetry(ctx)
		case <-ctx.Done():
			w.drain()
			w.flushWithRetry(context.Background())
			w.log.Info().Int64("last_sequence", w.lastSeq).Msg("context cancelled, worker stopping")
			return
		}
	}
}

// Done is closed once Run has returned and all buffered rows are flushed.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) drain() {
	for {
		select {
		case out, ok := <-w.input:
			if !ok {
				return
			}
			w.buffer(out)
		default:
			return
		}
	}
}

func (w *Worker) buffer(out core.EngineOutput) {
	env := out.Envelope
	w.events = append(w.events, EventRow{
		Sequence:       env.Sequence,
		EventType:      int32(env.EventType),
		IdempotencyKey: env.IdempotencyKey,
		Partition:      env.Partition,
		Payload:        env.Payload,
		StateHash:      env.StateHash[:],
		PrevHash:       env.PrevHash[:],
		Timestamp:      env.Timestamp,
		SourceSequence: env.SourceSequence,
	})
	w.lastSeq = env.Sequence

	if out.Batch != nil {
		for _, j := range out.Batch.Journals {
			assetName, _ := ledger.GetAssetName(j.AssetID)
			w.journals = append(w.journals, JournalRow{
				JournalID:     j.JournalID.String(),
				BatchID:       j.BatchID.String(),
				EventRef:      j.EventRef,
				EventSequence: j.Sequence,
				JournalType:   int32(j.JournalType),
				DebitAccount:  j.DebitAccount.AccountPath(),
				CreditAccount: j.CreditAccount.AccountPath(),
				Asset:         assetName,
				Amount:        j.Amount,
				Timestamp:     time.UnixMicro(j.Timestamp),
			})
		}
	}
}

// flushWithRetry writes the buffered rows, retrying with exponential backoff
// until the write succeeds. Losing accepted events is not an option, so the
// worker stalls (and the engine with it) rather than dropping data.
func (w *Worker) flushWithRetry(ctx context.Context) {
	if len(w.events) == 0 {
		return
	}

	backoff := 100 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := w.flush(ctx)
		if err == nil {
			return
		}

		w.metrics.PersistErrors.WithLabelValues("flush").Inc()
		w.metrics.PersistRetry.Inc()
		w.log.Error().Err(err).
			Int("attempt", attempt).
			Int("events", len(w.events)).
			Dur("backoff", backoff).
			Msg("persist flush failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			w.log.Error().Int("events", len(w.events)).Msg("persist abandoned on shutdown")
			return
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

func (w *Worker) flush(ctx context.Context) error {
	start := time.Now()

	tx, err := w.writer.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, w.events); err != nil {
		return err
	}
	if err := w.writer.WriteJournalBatch(ctx, tx, w.journals); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
	w.metrics.PersistBatchSize.Observe(float64(len(w.events)))
	w.metrics.PersistEventsWritten.Add(float64(len(w.events)))
	w.metrics.PersistJournalsWritten.Add(float64(len(w.journals)))
	w.metrics.PersistLastSequence.Set(float64(w.lastSeq))

	w.events = w.events[:0]
	w.journals = w.journals[:0]
	return nil
}
