package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursatb/bomstock/internal/config"
	"github.com/kursatb/bomstock/internal/domain/materials"
	"github.com/kursatb/bomstock/internal/domain/orders"
	"github.com/kursatb/bomstock/internal/domain/products"
	"github.com/kursatb/bomstock/internal/domain/stock"
	"github.com/kursatb/bomstock/internal/infra/db"
	httpx "github.com/kursatb/bomstock/internal/infra/http"
	"github.com/kursatb/bomstock/internal/infra/logger"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	matRepo := materials.NewRepo(pool)
	prodRepo := products.NewRepo(pool)
	ledger := stock.NewLedger(pool)
	orderRepo := orders.NewRepo(pool, ledger)
	engine := orders.NewEngine(prodRepo, ledger, orderRepo, log)

	api := httpx.NewHandler(log, matRepo, ledger, prodRepo, engine, orderRepo)
	srv := httpx.New(cfg.HTTP.Addr, api, cfg.Metrics.Enabled)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
