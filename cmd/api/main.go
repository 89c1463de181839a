package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"finance-tower/internal/auth"
	"finance-tower/internal/config"
	"finance-tower/internal/finance"
	"finance-tower/internal/identity"
	"finance-tower/internal/ledger"
	"finance-tower/pkg/logger"
	"finance-tower/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, dialect, err := openLedgerDB(rootCtx, cfg)
	if err != nil {
		log.Error("database init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := ledger.Migrate(rootCtx, db, dialect); err != nil {
		log.Error("ledger migration failed", "err", err)
		os.Exit(1)
	}
	if dialect == ledger.DialectSQLite {
		if err := identity.Migrate(rootCtx, db); err != nil {
			log.Error("identity migration failed", "err", err)
			os.Exit(1)
		}
	}

	var rdb *redis.Client
	if addr := cfg.RedisAddr(); addr != "" {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	} else {
		log.Warn("redis not configured; payout guard and name cache disabled")
	}

	svc := finance.NewService(ledger.New(db), finance.Config{
		DefaultCurrency: cfg.Finance.DefaultCurrency,
		AuditLimit:      cfg.Finance.AuditLimit,
		Directory:       identity.NewCachedDirectory(identity.NewSQLDirectory(db), rdb, 10*time.Minute),
		Guard:           utils.NewConcurrencyGuard(rdb, "finance:payout:", cfg.Finance.PayoutLockTTL),
	})

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, db, auth.RequireAccessToken(authManager), svc, identity.NewSQLMembership(db))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "dialect", string(dialect))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func openLedgerDB(ctx context.Context, cfg config.Config) (*sql.DB, ledger.Dialect, error) {
	if cfg.DB.SQLitePath != "" {
		db, err := utils.OpenSQLite(ctx, cfg.DB.SQLitePath)
		return db, ledger.DialectSQLite, err
	}
	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	return db, ledger.DialectPostgres, err
}
