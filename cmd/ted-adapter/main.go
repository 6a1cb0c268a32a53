package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/tenderwatch/ted-adapter/internal/api"
	"github.com/tenderwatch/ted-adapter/internal/jobs"
	"github.com/tenderwatch/ted-adapter/internal/publisher"
	"github.com/tenderwatch/ted-adapter/internal/rate"
	internalsecrets "github.com/tenderwatch/ted-adapter/internal/secrets"
	"github.com/tenderwatch/ted-adapter/internal/store"
	"github.com/tenderwatch/ted-adapter/internal/ted"
	"github.com/tenderwatch/ted-adapter/internal/tender"
	"github.com/tenderwatch/ted-adapter/pkg/config"
	"github.com/tenderwatch/ted-adapter/pkg/logger"
	"github.com/tenderwatch/ted-adapter/pkg/secrets"
	"github.com/tenderwatch/ted-adapter/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [ted-adapter]...")

	if err := cfg.Validate(); err != nil {
		logg.Fatalw("invalid configuration", "error", err)
	}

	// --- Database DSN (optionally from AWS Secrets Manager) ---
	dsn := cfg.DatabaseURL
	if cfg.DatabaseURLSecret != "" {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		dsnCache := secrets.NewCache[string](cfg.SecretTTL)
		resolver := internalsecrets.NewDSNResolver(logger.Named("secrets"), awsProvider, dsnCache)
		if dsn, err = resolver.Resolve(ctx, cfg.DatabaseURLSecret); err != nil {
			logg.Fatalw("failed to resolve database secret", "secret", cfg.DatabaseURLSecret, "error", err)
		}
	}
	logg.Info("connection to DSN: ", utils.MaskDSN(dsn))

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(store.RedisConfig{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPass,
		TTL:      cfg.ResultTTL,
	}, dsn, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logger.Named("store"))
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Event sinks ---
	var (
		nc    *nats.Conn
		sinks []publisher.Sink
	)
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		natsSink, err := publisher.NewNATSSink(nc)
		if err != nil {
			logg.Fatalw("failed to init JetStream", "error", err)
		}
		sinks = append(sinks, natsSink)
	}
	if cfg.AMQPURL != "" {
		amqpSink, err := publisher.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logg.Fatalw("failed to connect to RabbitMQ", "url", utils.MaskDSN(cfg.AMQPURL), "error", err)
		}
		sinks = append(sinks, amqpSink)
	}
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, publisher.NewKafkaSink(cfg.KafkaBrokers))
	}
	pub := publisher.New(cfg.NATSSubject, cfg.ServiceName, sinks...)

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: float64(cfg.TEDRequestsPerSecond),
		Burst:             cfg.TEDRequestsPerSecond,
	})

	// --- TED client + fetcher ---
	tedClient := ted.NewClient(
		logger.Named("ted"),
		rateMgr,
		&http.Client{Timeout: cfg.TEDRequestTimeout},
		cfg.TEDAPIURL,
		cfg.TEDRetryMax,
	)
	fetcher := ted.NewFetcher(logger.Named("fetcher"), tedClient, cfg.TEDPageLimit, cfg.TEDMaxPages, nil)

	// --- Aggregation engine ---
	pipeline, err := tender.NewEngine(logger.Named("engine"), tender.EngineOptions{
		ReferenceCurrency: cfg.ReferenceCurrency,
		RateOverrides:     cfg.ExchangeRates,
		UrgencyProfile:    cfg.UrgencyProfile,
		LexiconPath:       cfg.LotLexiconPath,
	})
	if err != nil {
		logg.Fatalw("failed to init aggregation engine", "error", err)
	}

	// --- Refresher ---
	query := ted.Query{Countries: cfg.TEDCountries, LookbackDays: cfg.TEDLookbackDays}
	refresher := jobs.NewRefresher(logger.Named("refresher"), fetcher, pipeline, st, pub, query, cfg.RefreshInterval)
	go refresher.Start(ctx)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	})
	tenderHandler := api.NewTenderHandler(logger.Named("api"), st, refresher)
	api.RegisterRoutes(app, nc, st, tenderHandler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[ted-adapter] running",
		"env", cfg.Env,
		"countries", cfg.TEDCountries,
		"refresh_interval", cfg.RefreshInterval,
		"sinks", pub.Sinks())

	<-ctx.Done()
	logg.Info("shutting down [ted-adapter]...")

	refresher.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := pub.Close(); err != nil {
		logg.Warnw("publisher.close_failed", "error", err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
