package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"todolist/internal/config"
	apphttp "todolist/internal/http"
	"todolist/internal/metrics"
	"todolist/internal/repository"
	"todolist/internal/repository/postgres"
	redisrepo "todolist/internal/repository/redis"
	"todolist/internal/repository/sqlite"
	"todolist/internal/service"
	"todolist/internal/token"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open stores: %v", err)
	}
	defer stores.close()

	if err := stores.users.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := stores.revoked.Init(ctx); err != nil {
		logger.Fatalf("init revocation repository: %v", err)
	}

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  []byte(cfg.Auth.JWTSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	if err != nil {
		logger.Fatalf("token manager: %v", err)
	}
	logger.Infof("access tokens expire after %s, refresh tokens after %s", tokens.AccessTTL(), tokens.RefreshTTL())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	hasher := service.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashWorkers, recorder)
	userService := service.NewUserService(stores.users, hasher)
	sessionService := service.NewSessionService(userService, tokens, stores.revoked, recorder, logger)

	go sessionService.RunJanitor(ctx, cfg.Revocation.PurgeInterval)

	limiter := apphttp.NewRateLimiter(apphttp.DefaultRateLimiterConfig())
	defer limiter.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	handler := apphttp.NewHandler(sessionService, limiter, metrics.Handler(registry), logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

type stores struct {
	users   repository.UserRepository
	revoked repository.RevocationRepository
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores picks the credential store by database.driver and the denylist
// by revocation.backend.
func openStores(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*stores, error) {
	s := &stores{}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		params := postgres.ConnParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Name:     cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		}
		pool, err := postgres.Open(ctx, params.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.users = postgres.NewUserRepository(pool)
		s.revoked = postgres.NewRevocationRepository(pool)
		logger.Infof("using postgres database %s on %s", cfg.Database.Name, cfg.Database.Host)
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		s.users = sqlite.NewUserRepository(db)
		s.revoked = sqlite.NewRevocationRepository(db)
		logger.Infof("using sqlite database %s", cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if cfg.Revocation.Backend == config.BackendRedis {
		client, err := redisrepo.Open(ctx, redisrepo.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.revoked = redisrepo.NewRevocationRepository(client, cfg.Redis.KeyPrefix)
		logger.Infof("using redis revocation list at %s", cfg.Redis.Addr)
	}

	return s, nil
}
