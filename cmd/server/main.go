// Command server runs the back-office orders API.
//
//	@title						Back-office Orders API
//	@version					1.0
//	@description				Order fulfillment, inventory and customer delegation for a multi-tier back office.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	_ "github.com/bizdesk/backoffice/docs"
	"github.com/bizdesk/backoffice/internal/api"
	"github.com/bizdesk/backoffice/internal/core/inventory"
	"github.com/bizdesk/backoffice/internal/core/ports"
	"github.com/bizdesk/backoffice/internal/core/service"
	"github.com/bizdesk/backoffice/internal/core/visibility"
	"github.com/bizdesk/backoffice/internal/infrastructure/db/memory"
	"github.com/bizdesk/backoffice/internal/infrastructure/db/mongo"
	"github.com/bizdesk/backoffice/internal/infrastructure/db/postgres"
	"github.com/bizdesk/backoffice/internal/infrastructure/db/redis"
	"github.com/bizdesk/backoffice/internal/infrastructure/db/sqlite"
	"github.com/bizdesk/backoffice/internal/infrastructure/queue"
	"github.com/bizdesk/backoffice/internal/pkg/config"
	"github.com/bizdesk/backoffice/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile, logLevel string
	pflag.StringVar(&envFile, "env-file", "", "load environment variables from this file before reading config")
	pflag.StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (trace, debug, info, warn, error)")
	pflag.Parse()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else {
		// A missing .env is fine outside development.
		_ = godotenv.Load()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "backoffice",
	})

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	auditRepo := ports.AuditRepository(queue.NewLogRepository(log))
	var mongoDB *mongodriver.Database
	if cfg.Mongo.URI != "" {
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		defer func() {
			if err := mongo.Disconnect(client, 5*time.Second); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		}()

		events := mongo.NewOrderEventRepository(db)
		if err := events.EnsureIndexes(ctx); err != nil {
			return err
		}
		auditRepo = events
		mongoDB = db
		log.Info().Str("database", cfg.Mongo.Database).Msg("audit events persisted to mongodb")
	}

	var (
		rdb         *goredis.Client
		idempotency ports.IdempotencyStore
	)
	if cfg.Redis.Addr != "" {
		rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		idempotency = redis.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("idempotency keys stored in redis")
	}

	vis := visibility.New(visibility.Config{SuperAdminEmail: cfg.SuperAdminEmail})
	ledger := inventory.NewLedger(store, logger.For("inventory"))
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, auditRepo, logger.For("dispatcher"))

	router := api.NewRouter(api.Dependencies{
		Auth:      service.NewAuthService(store, vis, cfg.JWTSecret, cfg.TokenTTL, logger.For("auth")),
		Orders:    service.NewOrderService(store, ledger, vis, idempotency, dispatcher, logger.For("orders")),
		Customers: service.NewCustomerService(store, vis, logger.For("customers")),
		Products:  service.NewProductService(store, ledger, logger.For("products")),
		Store:     store,
		Mongo:     mongoDB,
		Redis:     rdb,
		JWTSecret: cfg.JWTSecret,
		Errors:    api.ErrorOptions{HideForbidden: cfg.HideForbidden},
		Logger:    logger.For("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The dispatcher outlives the HTTP server so events from in-flight
	// requests are still persisted.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		defer stopDispatch()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (ports.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Connect(ctx, postgres.Config{DSN: cfg.PostgresDSN})
	case config.DriverSQLite:
		return sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLitePath})
	case config.DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
