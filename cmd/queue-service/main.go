package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qms/queue-core/internal/announce"
	"qms/queue-core/internal/broadcast"
	"qms/queue-core/internal/config"
	"qms/queue-core/internal/fanout"
	"qms/queue-core/internal/httpapi"
	"qms/queue-core/internal/hub"
	"qms/queue-core/internal/logger"
	"qms/queue-core/internal/metrics"
	"qms/queue-core/internal/notify"
	"qms/queue-core/internal/queue"
	"qms/queue-core/internal/store"
	"qms/queue-core/internal/store/memory"
	"qms/queue-core/internal/store/postgres"
	"qms/queue-core/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("queue-service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, "queue-service", log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	calendar, err := queue.NewCalendar(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	h := hub.New(log)
	local := broadcast.HubPublisher{Hub: h}
	var publisher broadcast.Publisher = local
	var clipCache announce.Cache = announce.NewMemoryCache()
	if rdb != nil {
		publisher = broadcast.NewRedisPublisher(rdb, cfg.RedisChannel)
		clipCache = announce.NewRedisCache(rdb)
	}

	gateway := announce.NewGateway(announce.Options{
		URL:      cfg.TTSURL,
		Timeout:  cfg.TTSTimeout,
		Cache:    clipCache,
		CacheTTL: cfg.AnnounceCacheTTL,
		Logger:   log,
	})

	var email notify.Sender = notify.LogSender{Logger: log}
	if cfg.SMTP.Host != "" {
		email = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	text := notify.NewTextSender(cfg.TextProvider, cfg.TextWebhookURL, cfg.TextWebhookToken, log)
	notifier := notify.NewNotifier(email, text, log)

	// The engine and the dispatcher reference each other; the reader is
	// bound once the engine exists.
	reader := &engineReader{}
	dispatcher := fanout.New(fanout.Config{
		Workers: cfg.FanoutWorkers,
		Buffer:  cfg.FanoutBuffer,
		Timeout: cfg.FanoutTimeout,
	}, fanout.Deps{
		Reader:    reader,
		Guards:    st,
		Notifier:  notifier,
		Announcer: gateway,
		Publisher: publisher,
		Logger:    log,
	})
	engine := queue.NewEngine(st, queue.Options{
		Calendar:   calendar,
		Dispatcher: dispatcher,
		Logger:     log,
	})
	reader.Engine = engine
	dispatcher.Start()
	defer dispatcher.Close()

	handler := httpapi.NewHandler(engine)
	mux := handler.Routes()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/realtime/", h.Handler("/realtime"))

	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:      cfg.RateLimitPerMinute,
		IPBurst:          cfg.RateLimitBurst,
		OfficerPerMinute: cfg.RateLimitPerMinute,
		OfficerBurst:     cfg.RateLimitBurst,
	})
	var root http.Handler = httpapi.OfficerMiddleware(mux)
	root = limiter.Middleware(root)
	root = httpapi.LoggingMiddleware(log, root)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     otelhttp.NewHandler(root, "queue-service"),
		ReadTimeout: 10 * time.Second,
		// Realtime sessions stream indefinitely.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("queue-service listening", "addr", server.Addr, "store", cfg.StoreDriver, "timezone", cfg.Timezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if rdb != nil {
		bridge := broadcast.NewBridge(rdb, cfg.RedisChannel, local, log)
		group.Go(func() error {
			return bridge.Run(groupCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown error", "error", err)
		}
		return nil
	})
	return group.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		st := memory.New()
		seedDemo(st)
		return st, func() {}, nil
	case "postgres", "":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		return postgres.NewStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// engineReader breaks the construction cycle between engine and dispatcher.
type engineReader struct {
	*queue.Engine
}
