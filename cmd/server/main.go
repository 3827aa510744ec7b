package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hongminglow/tripdesk/internal/auth"
	"github.com/hongminglow/tripdesk/internal/config"
	"github.com/hongminglow/tripdesk/internal/http/handlers"
	"github.com/hongminglow/tripdesk/internal/logger"
	"github.com/hongminglow/tripdesk/internal/metrics"
	"github.com/hongminglow/tripdesk/internal/notify"
	"github.com/hongminglow/tripdesk/internal/server"
	"github.com/hongminglow/tripdesk/internal/service"
	"github.com/hongminglow/tripdesk/internal/session"
	"github.com/hongminglow/tripdesk/internal/storage"
	"github.com/hongminglow/tripdesk/internal/storage/memory"
	postgres "github.com/hongminglow/tripdesk/internal/storage/postgres"
)

func main() {
	envLoaded := godotenv.Load() == nil

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	if !envLoaded {
		lg.Infow("no .env file found; relying on existing environment")
	}

	if err := run(cfg, lg); err != nil {
		lg.Fatalw("server stopped", "err", err)
	}
}

func run(cfg config.Config, lg *zap.SugaredLogger) error {
	ctx := context.Background()
	ready := map[string]handlers.Pinger{}

	var store storage.IdentityStore
	if cfg.DatabaseURL == "" {
		lg.Warnw("DATABASE_URL not set; using in-memory identity store")
		store = memory.NewStore()
	} else {
		pg, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
		ready["postgres"] = pg
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	sessions := session.NewRegistry(rdb)
	ready["redis"] = sessions

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
		Issuer:        cfg.AppName,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc, err := service.NewAuthService(service.Deps{
		Store:    store,
		Sessions: sessions,
		Tokens:   tokens,
		Notifier: notify.NewLogSender(lg.Named("notify"), cfg.FrontendURL),
		Logger:   lg.Named("auth"),
		Metrics:  m,
		Options:  service.Options{StrictResetEmail: cfg.StrictResetEmail},
	})
	if err != nil {
		return err
	}

	if cfg.SuperAdminEmail != "" && cfg.SuperAdminPassword != "" {
		if _, _, err := svc.EnsureSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword, "Super", "Admin"); err != nil {
			return err
		}
	}

	srv := server.New(cfg, server.Deps{
		Auth:    svc,
		Tokens:  tokens,
		Users:   store,
		Metrics: m,
		Logger:  lg,
		Ready:   ready,
	})

	errCh := make(chan error, 1)
	go func() {
		lg.Infow("tripdesk auth listening", "addr", cfg.HTTPAddress(), "env", cfg.Env)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		return err
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		lg.Warnw("graceful shutdown error", "err", err)
	}
	return nil
}
