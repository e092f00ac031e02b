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

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"vialidad/internal/audit"
	holderhandler "vialidad/internal/holder/handler"
	holderservice "vialidad/internal/holder/service"
	holderstore "vialidad/internal/holder/store"
	licensehandler "vialidad/internal/license/handler"
	licensemetrics "vialidad/internal/license/metrics"
	licenseservice "vialidad/internal/license/service"
	licensestore "vialidad/internal/license/store"
	"vialidad/internal/license/sweeper"
	operatorhandler "vialidad/internal/operator/handler"
	operatorservice "vialidad/internal/operator/service"
	operatorstore "vialidad/internal/operator/store"
	"vialidad/internal/platform/config"
	"vialidad/internal/platform/httpserver"
	"vialidad/internal/platform/logger"
	"vialidad/internal/platform/redis"
	"vialidad/internal/tariff"
	tariffstore "vialidad/internal/tariff/store"
	httptransport "vialidad/internal/transport/http"
	"vialidad/pkg/platform/tx"
)

// main wires the registry's dependencies and keeps the server lifecycle
// small. Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	table, err := loadTariffs(ctx, deps.tariffs, log)
	if err != nil {
		return err
	}
	calculator := tariff.NewCalculator(table, cfg.AdminSurcharge)

	if err := operatorstore.SeedDefaultOperators(ctx, deps.operators); err != nil {
		return err
	}

	publisher := audit.NewPublisher(deps.auditStore)

	licenseSvc := licenseservice.New(
		deps.licenses, deps.holders, deps.operators, deps.txRunner,
		calculator, cfg.CopyFee,
		licenseservice.WithLogger(log),
		licenseservice.WithAuditPublisher(publisher),
		licenseservice.WithMetrics(licensemetrics.New()),
	)
	holderSvc := holderservice.New(deps.holders,
		holderservice.WithLogger(log),
		holderservice.WithAuditPublisher(publisher),
		holderservice.WithLicenseDirectory(deps.licenseDir),
	)
	operatorSvc := operatorservice.New(deps.operators, cfg.JWTSigningKey, cfg.TokenTTL,
		operatorservice.WithLogger(log),
		operatorservice.WithAuditPublisher(publisher),
	)

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:    log,
		Validator: operatorSvc,
		Public: []httptransport.Registrar{
			operatorhandler.New(operatorSvc, log),
		},
		Protected: []httptransport.Registrar{
			licensehandler.New(licenseSvc, log),
			holderhandler.New(holderSvc, log),
		},
		Health: healthChecks(deps.db, redisClient),
	})
	srv := httpserver.New(cfg.Addr, router)

	sweep := sweeper.New(licenseSvc, cfg.SweepInterval,
		sweeper.WithLogger(log),
		sweeper.WithLeaderLock(redisClient),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting license registry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweep.Run(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// stores bundles the persistence layer so run can wire either backend.
type stores struct {
	db         *sql.DB
	licenses   licenseservice.Store
	licenseDir holderservice.LicenseDirectory
	holders    holderservice.Store
	operators  operatorstore.Accounts
	tariffs    tariff.Store
	auditStore audit.Store
	txRunner   licenseservice.TxRunner
}

func (s *stores) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// buildStores picks the backend: Postgres when DATABASE_URL is set, process
// memory otherwise. Memory mode exists for local development and tests.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*stores, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		holders := holderstore.NewInMemory()
		licenses := licensestore.NewInMemory(holders)
		return &stores{
			licenses:   licenses,
			licenseDir: licenses,
			holders:    holders,
			operators:  operatorstore.NewInMemory(),
			tariffs:    tariffstore.NewInMemory(tariffstore.Seed()),
			auditStore: audit.NewInMemoryStore(),
			txRunner:   tx.NewMutexRunner(),
		}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	licenses := licensestore.NewPostgres(db)
	return &stores{
		db:         db,
		licenses:   licenses,
		licenseDir: licenses,
		holders:    holderstore.NewPostgres(db),
		operators:  operatorstore.NewPostgres(db),
		tariffs:    tariffstore.NewPostgres(db),
		auditStore: audit.NewPostgresStore(db),
		txRunner:   tx.NewSQLRunner(db),
	}, nil
}

// loadTariffs reads the fee schedule from the store, falling back to the
// built-in schedule when the table is empty.
func loadTariffs(ctx context.Context, store tariff.Store, log *slog.Logger) (*tariff.Table, error) {
	table, err := tariff.Load(ctx, store)
	if err != nil {
		return nil, err
	}
	if table.Empty() {
		log.Warn("tariff table is empty, using built-in fee schedule")
		return tariff.NewTable(tariffstore.Seed()), nil
	}
	return table, nil
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func healthChecks(db *sql.DB, redisClient *redis.Client) []httptransport.HealthChecker {
	var checks []httptransport.HealthChecker
	if db != nil {
		checks = append(checks, dbHealth{db: db})
	}
	if redisClient != nil {
		checks = append(checks, redisClient)
	}
	return checks
}
