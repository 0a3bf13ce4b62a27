package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"DebtLedger/internal/config"
	"DebtLedger/internal/core"
	"DebtLedger/internal/event"
	"DebtLedger/internal/fixed"
	"DebtLedger/internal/ingestion"
	"DebtLedger/internal/observability"
	"DebtLedger/internal/oracle"
	"DebtLedger/internal/persistence"
	"DebtLedger/internal/projection"
	"DebtLedger/internal/query"
	"DebtLedger/internal/server"
	"DebtLedger/internal/settings"
)

func main() {
	log := observability.NewLogger("debtledger")
	log.Info().Msg("starting")

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	maxOpen, maxIdle, maxLifetime := config.DBTimeouts()
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.MigrationsDir, log)
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- Engine collaborators ---
	provider, err := settings.NewProvider(cfg.Params, cfg.AdminID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid policy params")
	}
	prices := oracle.NewCache(fixed.AmountScale)

	persistChan := make(chan core.EngineOutput, cfg.PersistChanSize)
	projectionChan := make(chan core.EngineOutput, cfg.ProjectionChanSize)
	dbChecker := persistence.NewDBIdempotencyChecker(db)

	engine := core.NewEngine(0, provider, prices, persistChan, projectionChan, dbChecker, metrics)

	// --- Recovery: snapshot restore + event log replay ---
	snapMgr := persistence.NewSnapshotManager(db, metrics, log)
	if err := recoverState(ctx, engine, snapMgr, db, dbChecker, log); err != nil {
		log.Fatal().Err(err).Msg("recovery failed")
	}

	// --- NATS ---
	nc, js, err := ingestion.Connect(cfg.NATSURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()

	if err := ingestion.EnsureStreams(ctx, js, log); err != nil {
		log.Fatal().Err(err).Msg("ensure inbound streams")
	}
	if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure outbound stream")
	}

	rawEventChan := make(chan ingestion.RawEvent, cfg.IngestChanSize)
	subscriber := ingestion.NewSubscriber(js, rawEventChan, log)
	if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		log.Fatal().Err(err).Msg("nats subscribe")
	}

	// --- Downstream fan-out ---
	// The engine's projection channel feeds both the table projections and
	// the outbound publisher; each gets its own queue with drop-on-full.
	projTableChan := make(chan core.EngineOutput, cfg.ProjectionChanSize)
	publishChan := make(chan core.EngineOutput, cfg.ProjectionChanSize)
	go fanOut(ctx, projectionChan, projTableChan, publishChan, metrics)

	// The persist worker gets its own context so it keeps draining after the
	// main context is cancelled; it stops when persistChan closes.
	persistCtx, persistCancel := context.WithCancel(context.Background())
	defer persistCancel()
	persistWorker := persistence.NewWorker(persistence.NewWriter(db), persistChan, metrics, log)
	go persistWorker.Run(persistCtx)

	projWorker := projection.NewWorker(db, projTableChan, metrics, log)
	go projWorker.Run(ctx)

	publisher := ingestion.NewPublisher(js, publishChan, log)
	go publisher.Run(ctx)

	shell := ingestion.NewShell(engine, rawEventChan, metrics, log)
	startSeq := engine.GetSequence()
	go shell.Run(ctx)

	go periodicSnapshots(ctx, shell, snapMgr, cfg.SnapshotInterval, cfg.SnapshotKeep, startSeq, log)

	// --- HTTP ---
	queries := query.NewService(db)
	commands := server.NewCommandGateway(js)
	httpSrv := server.New(cfg.HTTPAddr, queries, commands, health, log)

	httpErr := make(chan error, 1)
	go func() { httpErr <- httpSrv.ListenAndServe() }()

	health.SetReady(true)
	log.Info().
		Int64("sequence", startSeq).
		Str("http", cfg.HTTPAddr).
		Msg("ready")

	// --- Shutdown ---
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-httpErr:
		log.Error().Err(err).Msg("http server failed, shutting down")
	}

	subscriber.Stop()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutCancel()
	httpSrv.Shutdown(shutCtx)

	// Stop feeding the engine, then let the persistence worker drain.
	cancel()
	<-shell.Done()
	close(persistChan)
	select {
	case <-persistWorker.Done():
	case <-time.After(30 * time.Second):
		log.Error().Msg("persist worker did not drain in time")
	}

	if err := snapMgr.Save(shutCtx, engine.CreateSnapshotState()); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	} else {
		log.Info().Msg("final snapshot saved")
	}

	log.Info().Msg("shutdown complete")
}

// recoverState restores the latest snapshot (if any), warms the dedup LRU,
// and replays the event log tail through the engine.
func recoverState(
	ctx context.Context,
	engine *core.Engine,
	snapMgr *persistence.SnapshotManager,
	db *sql.DB,
	dbChecker *persistence.DBIdempotencyChecker,
	log zerolog.Logger,
) error {
	snap, err := snapMgr.LoadLatest(ctx)
	if err != nil {
		return err
	}
	if snap != nil {
		engine.RestoreFromSnapshot(snap)
		log.Info().Int64("sequence", snap.Sequence).Msg("snapshot restored")
	} else {
		// Cold start: warm the LRU from the newest persisted events so
		// redelivered messages do not fall through to Postgres lookups.
		keys, kerr := dbChecker.RecentKeys(ctx, 100_000)
		if kerr != nil {
			return kerr
		}
		engine.WarmLRU(keys)
		log.Info().Int("keys", len(keys)).Msg("cold start, dedup cache warmed from event log")
	}

	engine.SetReplaying(true)
	defer engine.SetReplaying(false)

	var replayed int64
	reader := persistence.NewReader(db)
	err = reader.ReplayFrom(ctx, engine.GetSequence(), func(seq int64, ev event.Event) error {
		if perr := engine.ProcessEvent(ev); perr != nil {
			return fmt.Errorf("replay event %d: %w", seq, perr)
		}
		replayed++
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("events", replayed).
		Int64("sequence", engine.GetSequence()).
		Msg("event log replayed")
	return nil
}

func fanOut(ctx context.Context, in <-chan core.EngineOutput, tables, outbound chan<- core.EngineOutput, metrics *observability.Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-in:
			if !ok {
				return
			}
			select {
			case tables <- out:
			default:
				metrics.ProjectionDrops.WithLabelValues("tables").Inc()
			}
			select {
			case outbound <- out:
			default:
				metrics.ProjectionDrops.WithLabelValues("outbound").Inc()
			}
		}
	}
}

func periodicSnapshots(ctx context.Context, shell *ingestion.Shell, snapMgr *persistence.SnapshotManager, interval int64, keep int, startSeq int64, log zerolog.Logger) {
	if interval <= 0 {
		interval = 100_000
	}

	lastSeq := startSeq
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := shell.Snapshot(ctx)
			if err != nil {
				return
			}
			if st.Sequence-lastSeq < interval {
				continue
			}
			if err := snapMgr.Save(ctx, st); err != nil {
				log.Warn().Err(err).Msg("periodic snapshot failed")
				continue
			}
			lastSeq = st.Sequence
			if err := snapMgr.Prune(ctx, keep); err != nil {
				log.Warn().Err(err).Msg("snapshot prune failed")
			}
		}
	}
}
