package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/swaplabs/swapd/params"
	"github.com/swaplabs/swapd/pkg/api"
	"github.com/swaplabs/swapd/pkg/escrow"
	"github.com/swaplabs/swapd/pkg/events"
	"github.com/swaplabs/swapd/pkg/ledger"
	"github.com/swaplabs/swapd/pkg/metering"
	"github.com/swaplabs/swapd/pkg/storage"
	"github.com/swaplabs/swapd/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Storage ----
	store, err := storage.NewPebbleStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Events ----
	// Order and metering events go to a durable JSON-lines log and to the
	// WebSocket hub.
	eventPath := filepath.Join(filepath.Dir(cfg.Node.LogFile), "events.log")
	fileLog, err := events.NewFileLog(eventPath)
	if err != nil {
		sugar.Fatalw("event_log_open_failed", "path", eventPath, "err", err)
	}
	defer fileLog.Close()

	journal, err := events.NewStoreLog(store)
	if err != nil {
		sugar.Fatalw("event_journal_init_failed", "err", err)
	}

	hub := api.NewHub(sugar)
	eventSink := events.Tee{journal, fileLog, api.NewBroadcaster(hub)}

	// ---- Ledger + engine ----
	book, err := ledger.NewLedger(store, cfg.Engine.TokenMint, sugar)
	if err != nil {
		sugar.Fatalw("ledger_init_failed", "err", err)
	}
	orders, err := escrow.NewOrderStore(store)
	if err != nil {
		sugar.Fatalw("order_store_init_failed", "err", err)
	}

	// The tick genesis persists in the store: expirations are tick values
	// that outlive the process, so the clock must not restart at zero.
	clock, err := util.ResumeTickClock(store, cfg.Node.TickInterval, util.RealClock{})
	if err != nil {
		sugar.Fatalw("clock_init_failed", "err", err)
	}
	engine := escrow.NewEngine(cfg.Engine, book, orders, eventSink, clock, sugar)

	// ---- Metering ----
	meter, err := metering.NewService(store, cfg.Node.Treasury, eventSink, sugar)
	if err != nil {
		sugar.Fatalw("metering_init_failed", "err", err)
	}

	sugar.Infow("node_starting",
		"db_path", cfg.Node.DBPath,
		"api_addr", cfg.Node.APIAddr,
		"tick_interval_ms", cfg.Node.TickInterval.Milliseconds(),
		"min_order_amount", cfg.Engine.MinOrderAmount,
		"max_expiry_window", cfg.Engine.MaxExpiryWindow,
		"open_orders", orders.Count())

	// ---- API server ----
	server := api.NewServer(cfg.Node.APIAddr, engine, book, meter, clock, journal, hub, sugar)

	go func() {
		if err := server.Start(); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sugar.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("api_shutdown_failed", "err", err)
	}
}
