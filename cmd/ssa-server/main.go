// Command ssa-server runs the catalog refresh loop, the conjunction and
// reservation pipelines, and the ops HTTP surface (healthz/readyz/metrics)
// as a single oklog/run.Group-coordinated process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orbitalos/ssa/internal/alerthub"
	"github.com/orbitalos/ssa/internal/app"
	"github.com/orbitalos/ssa/internal/catalog"
	"github.com/orbitalos/ssa/internal/conjunction"
	"github.com/orbitalos/ssa/internal/core/config"
	"github.com/orbitalos/ssa/internal/core/httpclient"
	"github.com/orbitalos/ssa/internal/core/model"
	"github.com/orbitalos/ssa/internal/core/observability"
	"github.com/orbitalos/ssa/internal/core/server"
	"github.com/orbitalos/ssa/internal/fetcher"
	"github.com/orbitalos/ssa/internal/kafkaevents"
	"github.com/orbitalos/ssa/internal/rediscache"
	"github.com/orbitalos/ssa/internal/reservation"
	"github.com/orbitalos/ssa/internal/riskmodel"
)

var version = "dev"

func main() {
	cfg := config.FromEnv()

	a := kingpin.New("ssa-server", "Space-situational-awareness conjunction and reservation service")
	addr := a.Flag("web.listen-address", "Address to serve healthz/readyz/metrics on.").Default(cfg.Addr).String()
	logLevel := a.Flag("log.level", "Log level: debug, info, warn, error.").Default(cfg.LogLevel).Enum("debug", "info", "warn", "error")
	refreshInterval := a.Flag("catalog.refresh-interval", "Interval between background catalog refreshes.").Default(cfg.RefreshInterval.String()).Duration()
	riskModelPath := a.Flag("risk-model.path", "Path to the persisted risk-model state file.").Default(cfg.RiskModelPath).String()
	a.HelpFlag.Short('h')

	if _, err := a.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(*logLevel)
	logger.Info("starting ssa-server", "version", version, "addr", *addr)

	// The ops router serves promhttp's default handler, so the service's
	// collectors go on the default registry, which already carries the Go
	// and process collectors.
	observability.Init(prometheus.DefaultRegisterer, true)

	fet := fetcher.New(httpclient.NewOutbound(), logger)

	var remote *rediscache.Client
	if cfg.RedisAddr != "" {
		rc, err := rediscache.New(context.Background(), cfg.RedisAddr, cfg.RedisCacheTTL)
		if err != nil {
			logger.Error("failed to connect to redis, running without the remote cache tier", "err", err)
		} else {
			remote = rc
			defer func() { _ = remote.Close() }()
		}
	}

	cat, err := catalog.New(fet, cfg.DefaultGroups, *refreshInterval, 4096, catalogRemote(remote), logger)
	if err != nil {
		logger.Error("failed to construct catalog manager", "err", err)
		os.Exit(1)
	}

	risk := riskmodel.LoadOrDefault(*riskModelPath, cfg.RiskLearningRate, cfg.RiskL2Penalty, logger)
	hub := alerthub.New(logger)

	var publisher conjunction.AlertPublisher = hub
	var kafkaProducer *kafkaevents.Producer
	if cfg.KafkaEnabled {
		kp, err := kafkaevents.New(kafkaevents.Config{Brokers: strings.Split(cfg.KafkaBrokers, ","), Topic: cfg.KafkaTopic, Enabled: true}, logger)
		if err != nil {
			logger.Error("failed to start kafka alert producer, continuing with in-process alerts only", "err", err)
		} else {
			kafkaProducer = kp
			defer func() { _ = kafkaProducer.Close() }()
			publisher = fanoutPublisher{hub: hub, kafka: kafkaProducer}
		}
	}

	analyzer := conjunction.New(risk, publisher, logger)
	reservations := reservation.New(cat, risk, logger)

	svc := app.New(cat, analyzer, reservations, risk, hub, conjunction.Params{
		HorizonHours:         cfg.AnalysisHorizon.Hours(),
		ScreeningKm:          cfg.AnalysisScreeningKm,
		ProbabilityThreshold: cfg.AnalysisProbabilityThresh,
		CoarseStep:           cfg.CoarseStep,
		FineStep:             cfg.FineStep,
		FineWindow:           cfg.FineWindow,
	}, logger)

	var g run.Group
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return server.Run(ctx, *addr, logger, cat)
		}, func(error) {
			cancel()
		})
	}
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			cat.RunRefreshLoop(ctx)
			return nil
		}, func(error) {
			cancel()
		})
	}
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			runReservationSweep(ctx, svc)
			return nil
		}, func(error) {
			cancel()
		})
	}
	{
		term := make(chan os.Signal, 1)
		cancel := make(chan struct{})
		signal.Notify(term, os.Interrupt, syscall.SIGTERM)
		g.Add(func() error {
			select {
			case sig := <-term:
				logger.Info("signal received, shutting down", "signal", sig.String())
			case <-cancel:
			}
			return nil
		}, func(error) {
			close(cancel)
		})
	}

	runErr := g.Run()

	if err := risk.Persist(); err != nil {
		logger.Warn("final risk model persist failed", "err", err)
	}

	if runErr != nil {
		logger.Error("ssa-server exited with error", "err", runErr)
		os.Exit(1)
	}
	logger.Info("ssa-server stopped")
}

// catalogRemote adapts a possibly-nil *rediscache.Client to catalog.RemoteCache;
// a nil interface value (not a nil pointer wrapped in a non-nil interface)
// tells the catalog manager to run with only its in-process LRU.
func catalogRemote(c *rediscache.Client) catalog.RemoteCache {
	if c == nil {
		return nil
	}
	return c
}

// fanoutPublisher publishes every alert to both the in-process hub and the
// Kafka topic, so external consumers and in-process subscribers (e.g. a
// future HTTP SSE layer) both see the same event stream.
type fanoutPublisher struct {
	hub   *alerthub.Hub
	kafka *kafkaevents.Producer
}

func (f fanoutPublisher) Publish(alert model.LiveAlert) {
	f.hub.Publish(alert)
	f.kafka.Publish(alert)
}

func runReservationSweep(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			svc.AdvanceReservations(now.UTC())
		}
	}
}

func newLogger(level string) *slog.Logger {
	logLevel := new(slog.LevelVar)
	switch level {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}
