package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/tableside/api"
	"github.com/angelmondragon/tableside/api/routes"
	"github.com/angelmondragon/tableside/internal/apiclient"
	"github.com/angelmondragon/tableside/internal/cron"
	"github.com/angelmondragon/tableside/internal/display"
	"github.com/angelmondragon/tableside/internal/realtime"
	"github.com/angelmondragon/tableside/pkg/auth"
	"github.com/angelmondragon/tableside/pkg/config"
	"github.com/angelmondragon/tableside/pkg/enums"
	"github.com/angelmondragon/tableside/pkg/instance"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/metrics"
	"github.com/angelmondragon/tableside/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "display"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "display",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if cfg.Display.UserID <= 0 {
		logg.Error(context.Background(), "display needs a user id", errors.New(config.EnvDisplayUserID+" is required"))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"user_id":  cfg.Display.UserID,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	realtimeMetrics := metrics.NewRealtimeMetrics(registry)

	client, err := apiclient.New(cfg.API,
		apiclient.WithLogger(logg),
		apiclient.WithBearerToken(cfg.API.AuthToken),
	)
	if err != nil {
		logg.Error(ctx, "failed to build api client", err)
		os.Exit(1)
	}

	var tokenCache auth.Cache
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		cache, err := auth.NewRedisCache(redisClient)
		if err != nil {
			logg.Error(ctx, "failed to build token cache", err)
			os.Exit(1)
		}
		tokenCache = cache
	}

	tokens, err := auth.NewTokenSource(auth.TokenSourceParams{
		Fetcher: client,
		Request: auth.TokenRequest{
			UserID: cfg.Display.UserID,
			Email:  cfg.Display.Email,
			Role:   enums.SessionRoleUser,
		},
		Skew:   cfg.Realtime.TokenExpirySkew,
		Cache:  tokenCache,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build token source", err)
		os.Exit(1)
	}

	socket, err := realtime.NewClient(realtime.Params{
		BaseURL: cfg.Realtime.BaseURL,
		Credentials: realtime.Credentials{
			UserID: cfg.Display.UserID,
			Role:   enums.SessionRoleUser,
			Email:  cfg.Display.Email,
		},
		Tokens:               tokens,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		BaseDelay:            cfg.Realtime.BaseDelay,
		WriteTimeout:         cfg.Realtime.WriteTimeout,
		Dialer:               realtime.NewDialer(cfg.Realtime.HandshakeTimeout),
		Logger:               logg,
		Metrics:              realtimeMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to build realtime client", err)
		os.Exit(1)
	}

	board, err := display.NewBoard(display.BoardParams{
		Lister:   client,
		Sender:   socket,
		PageSize: cfg.Display.PageSize,
		Ack:      cfg.Display.AckOrders,
		UserID:   cfg.Display.UserID,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to build order board", err)
		os.Exit(1)
	}
	unregister := board.Attach(socket)
	defer unregister()

	if _, err := board.Refresh(ctx); err != nil {
		logg.Warn(ctx, "initial order board load failed; waiting for the next new order")
	}
	socket.Connect(ctx)
	defer socket.Disconnect()

	pollJob, err := cron.NewBoardPollJob(socket, board)
	if err != nil {
		logg.Error(ctx, "failed to build board poll job", err)
		os.Exit(1)
	}
	reconnectJob, err := cron.NewReconnectJob(socket)
	if err != nil {
		logg.Error(ctx, "failed to build reconnect job", err)
		os.Exit(1)
	}
	jobs, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconnectJob, pollJob),
		Metrics:  metrics.NewJobMetrics(registry),
		Interval: cfg.Display.JobInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to build job service", err)
		os.Exit(1)
	}
	go func() {
		if err := jobs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "job service stopped", err)
		}
	}()

	server := api.NewServer(cfg.Display.Port, routes.NewRouter(cfg, logg, board, socket, registry))
	serverErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting display server")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "display server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "display server shutdown failed", err)
	}
	logg.Info(shutdownCtx, "display shutting down gracefully")
}
