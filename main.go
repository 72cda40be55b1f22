package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"agridash/config"
	"agridash/db"
	ahttp "agridash/http"
	"agridash/logging"
	"agridash/ml"
	"agridash/monitoring"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 2. Initialize database
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	// 3. Load the artifact bundle. A bad bundle leaves the service up but unavailable.
	predictor := ml.LoadPredictor(cfg.ML.ArtifactDir)
	defer predictor.Close()
	if err := predictor.LoadError(); err != nil {
		logger.Error("artifact bundle not loaded; predictions disabled",
			zap.String("dir", cfg.ML.ArtifactDir),
			zap.String("kind", string(ml.Kind(err))),
			zap.Error(err),
		)
	} else {
		manifest, _ := predictor.Manifest()
		logger.Info("artifact bundle loaded",
			zap.String("dir", cfg.ML.ArtifactDir),
			zap.String("bundle_id", manifest.BundleID),
			zap.String("model_type", manifest.ModelType),
			zap.Int("classes", manifest.NumClasses),
		)
	}

	metrics := monitoring.NewMetrics()
	metrics.SetModelAvailable(predictor.Available())

	var service ml.Service = predictor
	if cfg.ML.CacheSize > 0 {
		cached, err := ml.NewCachedPredictor(predictor, cfg.ML.CacheSize)
		if err != nil {
			logger.Fatal("failed to create prediction cache", zap.Error(err))
		}
		metrics.RegisterCacheStats(cached.Stats)
		service = cached
	}

	deps := ahttp.Deps{
		Predictor:         service,
		Store:             store,
		Metrics:           metrics,
		Logger:            logger,
		RecordPredictions: cfg.ML.RecordPredictions,
	}
	if cfg.ML.WatchArtifacts && predictor.Available() {
		manifest, _ := predictor.Manifest()
		watcher, err := ml.WatchBundle(cfg.ML.ArtifactDir, manifest.BundleID, logger)
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			defer watcher.Close()
			deps.Watcher = watcher
		}
	}

	// 4. Start HTTP server
	server := ahttp.NewServer(ahttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.Timeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	}, deps)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
