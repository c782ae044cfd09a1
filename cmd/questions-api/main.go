package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/bigkinds"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/history"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/llm"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/questions"
	"github.com/Adithya-Monish-Kumar-K/related-questions/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/related-questions/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults plus environment when empty)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting related questions service", "port", cfg.Server.Port, "bigkinds", cfg.BigKinds.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	client := bigkinds.New(cfg.BigKinds, m)

	engineOpts := []questions.EngineOption{questions.WithMetrics(m)}
	if cfg.LLM.Enabled {
		rephraser, err := llm.New(cfg.LLM)
		if err != nil {
			slog.Warn("llm rephraser disabled", "error", err)
		} else {
			engineOpts = append(engineOpts, questions.WithRephraser(rephraser))
			slog.Info("llm rephraser enabled", "model", cfg.LLM.Model)
		}
	}
	engine := questions.NewEngine(client, cfg.Expansion, engineOpts...)

	checker := health.NewChecker()
	breakers := make([]health.Breaker, 0, 4)
	for _, b := range client.Breakers() {
		breakers = append(breakers, b)
	}
	checker.Register("bigkinds", health.BreakerCheck(breakers...))

	var handlerOpts []questions.HandlerOption

	redisClient, err := pkgredis.NewClient(cfg.Redis, "rq:")
	if err != nil {
		slog.Warn("redis unavailable, question caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		handlerOpts = append(handlerOpts, questions.WithCache(questions.NewCache(redisClient, cfg.Redis.CacheTTL, m)))
		checker.Register("redis", health.OptionalPingCheck(redisClient))
		slog.Info("question cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var historyHandler *history.Handler
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store := history.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare history schema", "error", err)
			os.Exit(1)
		}
		handlerOpts = append(handlerOpts, questions.WithRecorder(store))
		historyHandler = history.NewHandler(store)
		checker.Register("postgres", health.PingCheck(db))
		slog.Info("run history enabled", "database", cfg.Postgres.Database)
	}

	var aggregator *analytics.Aggregator
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.QuestionEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		handlerOpts = append(handlerOpts, questions.WithTracker(collector))

		aggregator = analytics.NewAggregator()
		go func() {
			if err := aggregator.Start(ctx, cfg.Kafka, topic); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		slog.Info("analytics pipeline started", "topic", topic, "brokers", cfg.Kafka.Brokers)
	} else {
		aggregator = analytics.NewAggregator()
		handlerOpts = append(handlerOpts, questions.WithTracker(questions.TrackerFunc(aggregator.Record)))
		slog.Info("kafka disabled, aggregating analytics in process")
	}

	h := questions.NewHandler(engine, handlerOpts...)
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/related-questions", h.Generate)
	if historyHandler != nil {
		mux.HandleFunc("GET /api/v1/related-questions/history", historyHandler.Recent)
	}
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Window)
		defer limiter.Stop()
		chain = middleware.RateLimit(limiter, cfg.RateLimit.Requests, cfg.RateLimit.Window)(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("related questions service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("related questions service stopped")
}
