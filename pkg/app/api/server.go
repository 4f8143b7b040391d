// Package api implements app.Runner for the ledger API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apphttp "github.com/tipx/tipx/pkg/app/http"
	"github.com/tipx/tipx/pkg/config"
	"github.com/tipx/tipx/pkg/ethereum"
	"github.com/tipx/tipx/pkg/ledger/service"
	"github.com/tipx/tipx/pkg/ledgerstore"
	"github.com/tipx/tipx/pkg/pgutil"
	reconcilerpkg "github.com/tipx/tipx/pkg/reconciler"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.APIServerConfig
}

// NewServer initializes new api server.
func NewServer(cfg *config.APIServerConfig) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	payoutRate, err := decimal.NewFromString(cfg.Loyalty.PayoutRate)
	if err != nil {
		return fmt.Errorf("invalid loyalty payout rate %q: %w", cfg.Loyalty.PayoutRate, err)
	}

	dbBun, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = dbBun.Close() }()

	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	store := ledgerstore.NewStore(dbBun)

	var distributor service.Distributor
	var chainClient *ethereum.Client
	if cfg.Settlement.RPCURL != "" {
		chainClient, err = ethereum.NewClient(&cfg.Settlement, logger)
		if err != nil {
			return fmt.Errorf("connect settlement chain: %w", err)
		}
		defer chainClient.Close()

		if chainClient.Enabled() {
			distributor = chainClient
		} else {
			logger.Info("No operator key configured, loyalty payouts will be ledger-only")
		}
	}

	ledgerService := service.NewService(store, distributor, payoutRate, cfg.Loyalty.Threshold, logger)

	stopReconcile, err := s.startReconciler(ctx, store, chainClient, logger)
	if err != nil {
		return err
	}
	defer stopReconcile()

	s.startMetricsServer(logger)

	router := s.setupRouter(ledgerService, logger)

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

func (s *Server) startReconciler(
	ctx context.Context,
	store reconcilerpkg.Store,
	chainClient *ethereum.Client,
	logger *zap.Logger,
) (func(), error) {
	if !s.cfg.Reconciliation.Enabled {
		return func() {}, nil
	}
	if chainClient == nil {
		return nil, fmt.Errorf("reconciliation is enabled but no settlement rpc_url is configured")
	}

	rec := reconcilerpkg.New(store, chainClient, &s.cfg.Reconciliation, logger)
	if err := rec.Start(ctx); err != nil {
		return nil, fmt.Errorf("start reconciler: %w", err)
	}

	return func() {
		if err := rec.Stop(); err != nil {
			logger.Warn("Failed to stop reconciler", zap.Error(err))
		}
	}, nil
}

func (s *Server) startMetricsServer(logger *zap.Logger) {
	if !s.cfg.Monitoring.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", s.cfg.Monitoring.MetricsPort)

	go func() {
		logger.Info("Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
}

func (s *Server) setupRouter(ledgerService service.Service, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Ledger endpoints
	service.RegisterRoutes(r, ledgerService, logger)

	return r
}
