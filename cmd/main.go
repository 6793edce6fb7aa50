package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mise/internal/advisor"
	"mise/internal/alerts"
	"mise/internal/api"
	"mise/internal/config"
	"mise/internal/inventory"
	"mise/internal/monitoring"
	"mise/internal/recipes"
	"mise/internal/storage"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	logJSON     = flag.Bool("log-json", false, "Write logs as JSON")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Server.MetricsPort = *metricsPort
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	slog.SetDefault(logger)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	gateway, err := openGateway(cfg.Storage)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	// Initialize metrics
	collector := monitoring.NewCollector()
	monitor := monitoring.NewMonitor()

	// Initialize inventory
	svc := inventory.Open(ctx, gateway,
		inventory.WithCategories(cfg.Categories()...),
		inventory.WithLogger(logger),
		inventory.WithMetrics(collector),
	)
	feed := api.NewFeed(logger)
	threshold := cfg.LowStockThreshold()
	svc.Subscribe(func(change inventory.Change) {
		items := change.Snapshot.Len()
		low := len(alerts.LowStock(change.Snapshot, threshold))
		collector.SetInventoryLevels(items, low)
		monitor.RecordInventoryChange(string(change.Action), items, low, change.Degraded)
		feed.Publish(change)
	})
	snapshot := svc.Snapshot()
	collector.SetInventoryLevels(snapshot.Len(), len(alerts.LowStock(snapshot, threshold)))
	monitor.RecordMetric("storage_driver", cfg.Storage.Driver)
	monitor.RecordMetric("load_warnings", len(svc.LoadWarnings()))

	// Initialize recipes and advisor
	book, err := loadBook(cfg.Recipes.Path)
	if err != nil {
		logger.Error("failed to load recipes", "path", cfg.Recipes.Path, "error", err)
		os.Exit(1)
	}
	primary, err := advisor.NewBackend(cfg.Advisor)
	if err != nil {
		logger.Warn("advisor backend unavailable, using built-in suggestions", "backend", cfg.Advisor.Backend, "error", err)
		primary = nil
	}
	suggester := advisor.NewResilient(primary, advisor.NewFallback(cfg.Advisor.Seed),
		advisor.WithLogger(logger),
		advisor.WithMetrics(collector),
		advisor.WithTimeout(cfg.Advisor.Timeout),
	)

	monitor.RecordMetric("advisor_backend", suggester.Name())
	monitor.RecordMetric("recipes", book.Len())

	// Initialize API server
	inventoryAPI := api.NewInventoryAPI(api.Options{
		Inventory:         svc,
		Book:              book,
		Advisor:           suggester,
		Monitor:           monitor,
		Feed:              feed,
		Logger:            logger,
		LowStockThreshold: threshold,
		UseAmount:         cfg.UseAmount(),
	})

	// Start metrics server
	metricsServer := startMetricsServer(cfg.Server.MetricsPort, collector, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: inventoryAPI.Router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down servers")
		feed.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}

		cancel()
	}()

	logger.Info("starting API server",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"advisor", suggester.Name(),
		"recipes", book.Len(),
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("API server error", "error", err)
		os.Exit(1)
	}
	<-ctx.Done()
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if *logJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func openGateway(cfg config.StorageConfig) (storage.Gateway, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, err
		}
		return storage.OpenSQL(cfg.Driver, cfg.DSN)
	case config.DriverPostgres:
		return storage.OpenSQL(cfg.Driver, cfg.DSN)
	default:
		for _, path := range []string{cfg.InventoryPath, cfg.HistoryPath} {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
		}
		return storage.NewFileGateway(cfg.InventoryPath, cfg.HistoryPath), nil
	}
}

func loadBook(path string) (*recipes.Book, error) {
	if path == "" {
		return recipes.DefaultBook(), nil
	}
	return recipes.LoadBook(path)
}

func startMetricsServer(port int, collector *monitoring.Collector, logger *slog.Logger) *http.Server {
	metricsRouter := gin.New()
	metricsRouter.Use(gin.Recovery())
	metricsRouter.GET("/metrics", gin.WrapH(collector.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	go func() {
		logger.Info("starting metrics server", "port", port)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return metricsServer
}
