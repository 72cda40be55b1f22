// Package http serves the prediction API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"agridash/db"
	"agridash/ml"
	"agridash/monitoring"
	"agridash/soil"
	"go.uber.org/zap"
)

type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int64
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
	}
}

// Store is the persistence the handlers need.
type Store interface {
	SavePrediction(ctx context.Context, rec db.PredictionRecord) (int64, error)
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
	LoadTrainingLog(ctx context.Context) ([]db.TrainingLog, error)
	SaveSoilTest(ctx context.Context, test soil.Test) (int64, error)
	SoilTests(ctx context.Context, farmID string) ([]soil.Test, error)
}

// StalenessChecker reports whether the served bundle has been superseded on disk.
type StalenessChecker interface {
	Stale() bool
}

type Deps struct {
	Predictor ml.Service
	Store     Store
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
	Watcher   StalenessChecker
	// RecordPredictions stores every successful prediction in Store.
	RecordPredictions bool
}

func NewServer(config ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewHandler(config, deps),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		logger: deps.Logger,
	}
}

// NewHandler wires every route behind the middleware chain.
func NewHandler(config ServerConfig, deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	RegisterHandlers(mux, deps)

	chain := Chain(
		RecoveryMiddleware(deps.Logger),
		LoggerMiddleware(deps.Logger),
		SecurityHeadersMiddleware,
		CORSMiddleware(config.AllowedOrigins),
		RequestSizeMiddleware(config.MaxBodyBytes),
	)
	return chain(mux)
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}
