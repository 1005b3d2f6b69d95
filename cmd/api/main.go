package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/arnaudt-bojan/stockledger/internal/app"
	"github.com/arnaudt-bojan/stockledger/internal/clock"
	"github.com/arnaudt-bojan/stockledger/internal/config"
	"github.com/arnaudt-bojan/stockledger/internal/metrics"
	"github.com/arnaudt-bojan/stockledger/internal/storage/postgres"
	transporthttp "github.com/arnaudt-bojan/stockledger/internal/transport/http"
	"github.com/arnaudt-bojan/stockledger/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "stockledger").Logger()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to db")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal().Err(err).Msg("db ping")
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	ledgerRepo := postgres.NewLedgerRepository(pool, logger)
	reservationRepo := postgres.NewReservationRepository(pool)
	reservationSvc := app.NewReservationService(
		ledgerRepo,
		reservationRepo,
		clock.NewSystem(),
		m,
		app.WithHoldTTL(cfg.Reservation.HoldTTL),
	)
	adminSvc := app.NewAdminService(ledgerRepo)
	reaper := app.NewReaper(reservationSvc, logger, m, cfg.Reservation.SweepInterval, cfg.Reservation.SweepBatchSize)

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(reaperCtx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/reservations", transporthttp.HandleReserveStock(reservationSvc))
	mux.Handle("/reservations/", transporthttp.HandleReservationAction(reservationSvc))
	mux.Handle("/inventory/", transporthttp.HandleGetInventory(reservationSvc, cfg.Inventory.LowStockThreshold))
	mux.Handle("/admin/stock", transporthttp.HandleAdminStock(adminSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Info().Str("port", cfg.Port).Msg("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-stopCtx.Done():
		logger.Info().Msg("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	stopReaper()
	wg.Wait()
	logger.Info().Msg("server stopped")
}
