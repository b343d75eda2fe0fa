package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/lmhq-94/parkit-sub000/internal/audit"
	"github.com/lmhq-94/parkit-sub000/internal/auth"
	"github.com/lmhq-94/parkit-sub000/internal/config"
	"github.com/lmhq-94/parkit-sub000/internal/httpapi"
	"github.com/lmhq-94/parkit-sub000/internal/migrate"
	"github.com/lmhq-94/parkit-sub000/internal/obs"
	"github.com/lmhq-94/parkit-sub000/internal/ratelimit"
)

func main() {
	cfg, err := config.Load(os.Getenv("PARKIT_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		App:    cfg.App.Name,
		Env:    cfg.App.Env,
		Ver:    cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	audit.SetLogger(logger)

	// Stores: PostgreSQL when a DSN is configured, in-memory otherwise
	// (local development only).
	var (
		db        *sql.DB
		users     auth.UserStore
		revoked   auth.RefreshTokenStore
		resources auth.ResourceStore
	)
	if cfg.DB.DSN != "" {
		db, err = sql.Open("pgx", cfg.DB.DSN)
		if err != nil {
			logger.Fatal("open db", zap.Error(err))
		}
		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
		db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
		db.SetConnMaxLifetime(30 * time.Minute)

		if cfg.DB.Migrate {
			applied, err := migrate.New(db, cfg.DB.MigrationsDir).Apply(context.Background())
			if err != nil {
				logger.Fatal("apply migrations", zap.Error(err))
			}
			logger.Info("migrations applied", zap.Strings("files", applied))
		}

		pg := auth.NewPGStore(db)
		users, revoked, resources = pg, pg, pg
	} else {
		logger.Warn("no db dsn configured, using in-memory stores")
		mem := auth.NewMemoryStore()
		users, revoked, resources = mem, mem, mem
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		ResetSecret:   []byte(cfg.Auth.ResetSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		ResetTTL:      cfg.Auth.ResetTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}

	// Reset delivery is an external collaborator; without one configured we
	// only record that a token was issued.
	resetSink := auth.ResetSinkFunc(func(ctx context.Context, email, _ string, expiresAt time.Time) error {
		logger.Info("password reset token issued",
			zap.String("email", email),
			zap.Time("expires_at", expiresAt),
		)
		return nil
	})

	svc, err := auth.NewService(users, revoked, tokens, auth.NewHasher(cfg.Auth.BcryptCost),
		auth.WithResetSink(resetSink))
	if err != nil {
		logger.Fatal("auth service", zap.Error(err))
	}

	authLimiter := ratelimit.New(ratelimit.Config{Window: cfg.RateLimit.AuthWindow, Max: cfg.RateLimit.AuthMax})
	apiLimiter := ratelimit.New(ratelimit.Config{Window: cfg.RateLimit.APIWindow, Max: cfg.RateLimit.APIMax})

	api := httpapi.New(httpapi.Options{
		Logger:      logger,
		Auth:        svc,
		Users:       users,
		Resources:   resources,
		Tokens:      tokens,
		AuthLimiter: authLimiter,
		APILimiter:  apiLimiter,
		ReadyProbe:  httpapi.ReadyProbe{DB: db},
		Version:     cfg.App.Version,
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Housekeeping: drop stale limiter buckets and expired denylist rows.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				authLimiter.Sweep()
				apiLimiter.Sweep()
				if _, err := revoked.PurgeExpired(sweepCtx, time.Now()); err != nil && sweepCtx.Err() == nil {
					logger.Warn("purge revoked tokens", zap.Error(err))
				}
			}
		}
	}()

	logger.Info("starting parkit-auth",
		zap.String("addr", srv.Addr),
		zap.String("version", cfg.App.Version),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	logger.Info("stopped")
}
