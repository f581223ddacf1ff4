package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"label-matcher/core/broker"
	"label-matcher/core/loader"
	"label-matcher/core/logger"
	"label-matcher/core/metrics"
	"label-matcher/core/middleware/auth"
	"label-matcher/core/middleware/rayid"
	"label-matcher/core/tracing"
	"label-matcher/feature/labels"
	"label-matcher/feature/labels/ingest"
	"label-matcher/feature/orders"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "label-matcher/docs/swagger"
)

// @title Label Matcher API
// @version 1.0
// @description Reconciles shipping label objects with open orders.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reconciliation loop and the operator API",
	Long: `Starts the reconciliation loop, the worker pool, the configured push
ingestion sources and the HTTP operator API.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logg := loadEnv()
		defer logg.Sync()

		shutdownTracing, err := tracing.Init(cfg.Tracing)
		if err != nil {
			logg.Fatal("Failed to initialize tracing", zap.Error(err))
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		eng, err := buildEngine(ctx, cfg, logg)
		if err != nil {
			logg.Fatal("Failed to build engine", zap.Error(err))
		}
		defer eng.close()

		if err := eng.store.Migrate(ctx); err != nil {
			logg.Fatal("Failed to migrate state store", zap.Error(err))
		}

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		mgr := loader.NewManager(logg)
		mgr.Register(labels.NewFeature(eng.store, eng.bucket, eng.loop, logg, cfg.Labels))
		mgr.Register(orders.NewFeature(eng.store, eng.loop, logg, cfg.Labels.PageSize))

		// RayID must be first to trace everything.
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Debug("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Public endpoints.
		app.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok"})
		})
		app.Get("/metrics", metrics.Handler())
		app.Get("/swagger/*", swagger.HandlerDefault)

		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))
		if !cfg.Server.IsProtected() {
			logg.Warn("API key is empty; operator API is unprotected")
		}

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// Drives outlive the signal so they can finish within the shutdown window.
		poolCtx, stopPool := context.WithCancel(context.Background())
		defer stopPool()
		eng.pool.Start(poolCtx)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return eng.loop.Run(gctx)
		})
		if slices.Contains(cfg.Labels.Ingest, "notify") {
			src := ingest.NewNotificationSource(eng.storage, cfg.Storage.Bucket, eng.ingestor, eng.loop.Trigger, logg)
			g.Go(func() error {
				return src.Run(gctx)
			})
		}
		if slices.Contains(cfg.Labels.Ingest, "kafka") {
			if !cfg.Kafka.Enabled() || cfg.Kafka.EventsTopic == "" {
				logg.Fatal("Kafka ingestion selected but KAFKA_BROKERS or KAFKA_EVENTS_TOPIC is empty")
			}
			consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.GroupID, logg)
			defer consumer.Close()
			src := ingest.NewKafkaSource(consumer, eng.ingestor, eng.loop.Trigger, logg)
			g.Go(func() error {
				return src.Run(gctx)
			})
		}

		go func() {
			logg.Info("Starting server", zap.String("addr", cfg.Server.Addr()))
			if err := app.Listen(cfg.Server.Addr()); err != nil {
				logg.Error("Server stopped", zap.Error(err))
				cancel()
			}
		}()

		<-ctx.Done()
		logg.Info("Shutting down...")

		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			logg.Warn("HTTP shutdown incomplete", zap.Error(err))
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error("Background task failed", zap.Error(err))
		}
		drained := make(chan struct{})
		go func() {
			eng.pool.Shutdown()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(cfg.Server.ShutdownTimeout):
			// A drive cut short resumes from its checkpoint on the next start.
			logg.Warn("Worker pool did not drain in time, cancelling drives", zap.Int("pending", eng.pool.Pending()))
			stopPool()
			<-drained
		}

		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("Failed to flush traces: %v", err)
		}
		logg.Info("Stopped")
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
