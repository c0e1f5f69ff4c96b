package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/markus8006/plcfleet/internal/config"
	"github.com/markus8006/plcfleet/internal/discovery"
	"github.com/markus8006/plcfleet/internal/event"
	"github.com/markus8006/plcfleet/internal/history"
	"github.com/markus8006/plcfleet/internal/inventory"
	"github.com/markus8006/plcfleet/internal/registry"
	"github.com/markus8006/plcfleet/internal/server"
	"github.com/markus8006/plcfleet/internal/store"
	"github.com/markus8006/plcfleet/internal/supervisor"
	"github.com/markus8006/plcfleet/internal/version"
	"github.com/markus8006/plcfleet/pkg/plugin"
	"go.uber.org/zap"
)

// Exit codes follow sysexits: 64 for configuration errors, 74 for I/O
// errors, 130 for interrupt.
const (
	exitOK        = 0
	exitConfig    = 64
	exitIO        = 74
	exitInterrupt = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return exitOK
	}

	// Load configuration before the logger so level and format apply.
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return exitConfig
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return exitConfig
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("PLCFleet starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	// Open database.
	dbPath := viperCfg.GetString("database.path")
	if dbPath == "" {
		dbPath = filepath.Join(viperCfg.GetString("server.data_dir"), "plcfleet.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.Error("failed to create data directory", zap.Error(err))
		return exitIO
	}
	db, err := store.New(dbPath)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		return exitIO
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Refuse to run an older binary against a newer schema.
	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Error("database version check failed", zap.Error(err))
		return exitConfig
	}

	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	// Shared services.
	bus := event.NewBus(logger.Named("event"))
	reg := registry.New(logger.Named("registry"))

	// Register all plugins (compile-time composition).
	inv := inventory.New()
	hist := history.New()
	sup := supervisor.New()
	disc := discovery.New()

	for _, m := range []plugin.Plugin{inv, hist, sup, disc} {
		if err := reg.Register(m); err != nil {
			logger.Error("failed to register plugin", zap.Error(err))
			return exitConfig
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Error("plugin validation failed", zap.Error(err))
		return exitConfig
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		logger.Error("failed to initialize plugins", zap.Error(err))
		return exitConfig
	}

	// Cross-module wiring happens in the composition root so the
	// modules stay coupled through interfaces only.
	sup.SetInventory(inv.Store())
	sup.SetHistory(hist.Store())
	disc.SetInventory(inv.Store())
	inv.Store().SetPollDefaults(sup.PollDefaults())

	if err := reg.StartAll(ctx); err != nil {
		logger.Error("failed to start plugins", zap.Error(err))
		return exitConfig
	}

	// HTTP server.
	addr := viperCfg.GetString("server.host") + ":" + viperCfg.GetString("server.port")
	if addr == ":" {
		addr = "0.0.0.0:8080"
	}
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(addr, reg, logger, readyCheck)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	logger.Info("PLCFleet ready", zap.String("addr", addr))

	// Wait for shutdown signal or server failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	code := exitOK
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		if sig == syscall.SIGINT {
			code = exitInterrupt
		}
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			code = exitIO
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("PLCFleet stopped")
	return code
}
