package cmd

import (
	"context"
	"fmt"
	"log"
	"slices"

	"label-matcher/core/broker"
	"label-matcher/core/config"
	"label-matcher/core/database"
	"label-matcher/core/logger"
	"label-matcher/core/queue"
	"label-matcher/core/redisclient"
	"label-matcher/core/storage"
	"label-matcher/feature/labels/alert"
	"label-matcher/feature/labels/extract"
	"label-matcher/feature/labels/ingest"
	"label-matcher/feature/labels/loop"
	"label-matcher/feature/labels/matcher"
	"label-matcher/feature/labels/objects"
	"label-matcher/feature/labels/pipeline"
	"label-matcher/feature/labels/printer"
	"label-matcher/feature/labels/store"
	"label-matcher/feature/labels/worker"
	"label-matcher/feature/orders/veracore"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// engine holds every component of the reconciliation engine, wired from
// configuration. Commands build only what they need and call close.
type engine struct {
	cfg    *config.Config
	logger *zap.Logger

	redis    *redis.Client
	store    store.Store
	storage  storage.Client
	bucket   *objects.Bucket
	alerts   *alert.Notifier
	ingestor *ingest.Ingestor
	pipeline *pipeline.Pipeline
	pool     *worker.Pool
	cache    *matcher.PlanCache
	loop     *loop.Loop

	closers []func() error
}

// loadEnv loads configuration and the logger, exiting on failure like the
// server entrypoint does.
func loadEnv() (*config.Config, *zap.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logg, err := logger.New(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(logg)
	return cfg, logg
}

// openStore connects the configured state store only.
func openStore(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*engine, error) {
	e := &engine{cfg: cfg, logger: logg}

	if cfg.Redis.Enabled() {
		rdb, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		e.redis = rdb
		e.closers = append(e.closers, rdb.Close)
	}

	switch cfg.Labels.Store {
	case "gorm", "":
		db, err := database.Connect(cfg.Database)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		e.store = store.NewGorm(db)
	case "redis":
		if e.redis == nil {
			e.close()
			return nil, fmt.Errorf("redis store selected but REDIS_ADDR is empty")
		}
		e.store = store.NewRedis(e.redis, cfg.Redis.KeyPrefix)
	case "memory":
		logg.Warn("Using in-memory state store; state is lost on exit")
		e.store = store.NewMemory()
	default:
		e.close()
		return nil, fmt.Errorf("unknown store %q", cfg.Labels.Store)
	}
	e.closers = append([]func() error{e.store.Close}, e.closers...)
	return e, nil
}

// buildEngine wires the whole engine on top of the state store.
func buildEngine(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*engine, error) {
	e, err := openStore(ctx, cfg, logg)
	if err != nil {
		return nil, err
	}
	lc := cfg.Labels

	e.storage, err = storage.NewClient(cfg.Storage)
	if err != nil {
		e.close()
		return nil, err
	}
	e.bucket = objects.NewBucket(e.storage, cfg.Storage.Bucket)

	e.alerts = alert.NewNotifier(logg, e.alertSinks()...)

	ex, err := extract.New(lc.Extract)
	if err != nil {
		e.close()
		return nil, fmt.Errorf("invalid filename convention: %w", err)
	}
	e.ingestor = ingest.NewIngestor(e.store, ex, e.alerts, logg, lc.IncomingPrefix)

	p, err := e.printer()
	if err != nil {
		e.close()
		return nil, err
	}
	e.pipeline = pipeline.New(e.store, e.bucket, p, e.alerts, logg, pipeline.Config{
		IncomingPrefix:  lc.IncomingPrefix,
		ProcessedPrefix: lc.ProcessedPrefix,
		ErrorsPrefix:    lc.ErrorsPrefix,
		StepTimeout:     lc.StepTimeout,
		StepAttempts:    lc.StepAttempts,
		InitialBackoff:  lc.InitialBackoff,
		MaxBackoff:      lc.MaxBackoff,
		ClaimTTL:        lc.ClaimTTL,
		MaxDrives:       lc.MaxDrives,
	})
	e.pool = worker.New(e.pipeline, lc.Workers, lc.QueueSize, lc.MatchTimeout, logg)
	e.cache = matcher.NewPlanCache(lc.PlanCacheTTL)

	var feed loop.Feed
	if cfg.Feed.Enabled() {
		feed = veracore.NewClient(cfg.Feed, logg)
	} else {
		logg.Warn("Order feed is not configured; orders must already be in the store")
	}

	var poller loop.Poller
	if slices.Contains(lc.Ingest, "poll") {
		poller = ingest.NewPollSource(e.storage, cfg.Storage.Bucket, e.ingestor, lc.PageSize)
	}

	e.loop = loop.New(e.store, feed, poller, e.pool, e.bucket, e.alerts, e.cache, logg, loop.Config{
		IncomingPrefix: lc.IncomingPrefix,
		ErrorsPrefix:   lc.ErrorsPrefix,
		Interval:       lc.CycleInterval,
		OrphanTimeout:  lc.OrphanTimeout,
		OrderGrace:     lc.OrderGrace,
		FeedTimeout:    lc.FeedTimeout,
		PageSize:       lc.PageSize,
	})
	return e, nil
}

func (e *engine) alertSinks() []alert.Sink {
	sinks := []alert.Sink{alert.NewLogSink(e.logger)}
	if e.redis != nil && e.cfg.Redis.AlertChannel != "" {
		sinks = append(sinks, alert.NewRedisSink(e.redis, e.cfg.Redis.AlertChannel))
	}
	if e.cfg.Kafka.Enabled() && e.cfg.Kafka.AlertTopic != "" {
		p := broker.NewProducer(e.cfg.Kafka.Brokers, e.cfg.Kafka.AlertTopic)
		e.closers = append(e.closers, p.Close)
		sinks = append(sinks, alert.NewKafkaSink(p))
	}
	return sinks
}

func (e *engine) printer() (printer.Printer, error) {
	switch e.cfg.Labels.Printer {
	case "log", "":
		return printer.NewLog(e.logger), nil
	case "lmstfy":
		if e.cfg.Queue.Host == "" {
			return nil, fmt.Errorf("lmstfy printer selected but QUEUE_HOST is empty")
		}
		return printer.NewQueue(queue.NewClient(e.cfg.Queue), e.cfg.Queue.PrintQueue), nil
	case "kafka":
		if !e.cfg.Kafka.Enabled() {
			return nil, fmt.Errorf("kafka printer selected but KAFKA_BROKERS is empty")
		}
		p := broker.NewProducer(e.cfg.Kafka.Brokers, e.cfg.Kafka.PrintTopic)
		e.closers = append(e.closers, p.Close)
		return printer.NewTopic(p), nil
	default:
		return nil, fmt.Errorf("unknown printer %q", e.cfg.Labels.Printer)
	}
}

func (e *engine) close() {
	for _, c := range e.closers {
		if err := c(); err != nil {
			e.logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
	e.closers = nil
}

// noTrigger stands in for the loop when a command runs outside the server.
type noTrigger struct{}

func (noTrigger) Trigger() {}

func (noTrigger) Plan(ctx context.Context) (*matcher.Plan, error) {
	return nil, fmt.Errorf("no reconciliation loop in this process")
}
