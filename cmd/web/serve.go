package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"hospital-frontend/internal/audit"
	"hospital-frontend/internal/config"
	"hospital-frontend/internal/gateway"
	"hospital-frontend/internal/metrics"
	"hospital-frontend/internal/pii"
	"hospital-frontend/internal/session"
	"hospital-frontend/pkg/logger"
	"hospital-frontend/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

const purgeInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	rootCtx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg, m := metrics.NewRegistry()

	backend, err := openStore(rootCtx, cfg, log)
	if err != nil {
		log.Error("session store init failed", "store", cfg.Session.Store, "err", err)
		return err
	}
	defer backend.close()

	sessions, err := session.NewManager(session.ManagerConfig{
		CookieName:  cfg.Session.CookieName,
		Secret:      cfg.Session.Secret,
		TTL:         cfg.Session.TTL,
		RememberTTL: cfg.Session.RememberTTL,
		Secure:      cfg.Session.CookieSecure,
	}, backend.store, m)
	if err != nil {
		return fmt.Errorf("session init failed: %w", err)
	}

	gw, err := gateway.New(gateway.Options{
		BaseURL:       cfg.Gateway.BaseURL,
		Timeout:       cfg.Gateway.Timeout,
		DirectTimeout: cfg.Gateway.DirectTimeout,
		Services:      cfg.Gateway.Services,
		Recorder:      m,
	})
	if err != nil {
		return fmt.Errorf("gateway init failed: %w", err)
	}

	codec, err := pii.NewCodec(cfg.Crypto.EncryptionKey, m)
	if err != nil {
		return fmt.Errorf("pii codec init failed: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, deps{
		Sessions: sessions,
		Gateway:  gw,
		Codec:    codec,
		Audit:    audit.NewService(audit.NewLogRepo(log)),
		Metrics:  m,
		Registry: reg,
		Ready:    backend.ping,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Gateway calls may take up to the configured timeout.
		WriteTimeout: cfg.Gateway.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancelServe := context.WithCancel(rootCtx)
	defer cancelServe()

	go func() {
		log.Info("web listening",
			"addr", srv.Addr,
			"env", cfg.App.Env,
			"gateway", cfg.Gateway.BaseURL,
			"session_store", cfg.Session.Store,
			"legacy_services", cfg.ServiceNames(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			cancelServe()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
	return nil
}

// storeBackend is the opened session store plus its connection lifecycle.
type storeBackend struct {
	store session.Store
	ping  func(ctx context.Context) error
	close func()
}

const readyTimeout = 2 * time.Second

// openStore connects the configured session backend.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (storeBackend, error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{
			URL:      cfg.Redis.URL,
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return storeBackend{}, err
		}
		return storeBackend{
			store: session.NewRedisStore(rdb),
			ping: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, readyTimeout)
				defer cancel()
				return rdb.Ping(ctx).Err()
			},
			close: func() { _ = rdb.Close() },
		}, nil

	case config.StorePostgres, config.StoreSQLite:
		driver, dsn := utils.DriverPostgres, cfg.PostgresDSN()
		if cfg.Session.Store == config.StoreSQLite {
			driver, dsn = utils.DriverSQLite, cfg.SQLite.Path
		}
		db, err := utils.OpenSQL(ctx, driver, dsn, utils.SQLPoolConfig{})
		if err != nil {
			return storeBackend{}, err
		}
		st := session.NewSQLStore(db, driver)
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return storeBackend{}, fmt.Errorf("session table migrate: %w", err)
		}
		go purgeExpired(ctx, st, log)
		return storeBackend{
			store: st,
			ping:  func(ctx context.Context) error { return utils.HealthCheck(ctx, db, readyTimeout) },
			close: func() { _ = db.Close() },
		}, nil

	case config.StoreMemory:
		log.Warn("using in-process session store; sessions are lost on restart")
		return storeBackend{
			store: session.NewMemoryStore(),
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil

	default:
		return storeBackend{}, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}

// purgeExpired deletes expired SQL session rows until ctx ends.
func purgeExpired(ctx context.Context, st *session.SQLStore, log *slog.Logger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := st.PurgeExpired(ctx)
			if err != nil {
				log.Error("session purge failed", "err", err)
				continue
			}
			if n > 0 {
				log.Info("expired sessions purged", "count", n)
			}
		}
	}
}
