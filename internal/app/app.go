package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/specialorders/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/specialorders/internal/health"
	"github.com/vladislavdragonenkov/specialorders/internal/metrics"
	"github.com/vladislavdragonenkov/specialorders/internal/service/idempotency"
	"github.com/vladislavdragonenkov/specialorders/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/specialorders/internal/service/outbox"
	"github.com/vladislavdragonenkov/specialorders/internal/service/query"
	"github.com/vladislavdragonenkov/specialorders/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/specialorders/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает сервис спецзаказов и блокируется до отмены ctx или ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	policy := domain.PermissivePolicy()
	if cfg.StrictTransitions {
		policy = domain.StrictPolicy()
	}
	manager := lifecycle.NewManager(deps.uow,
		lifecycle.WithLogger(logger.WithField("component", "lifecycle")),
		lifecycle.WithMetrics(metrics.NewLifecycleMetrics()),
		lifecycle.WithPolicy(policy),
	)
	queries := query.NewService(deps.readModel, logger.WithField("component", "query"))

	apiLogger := logger.WithField("component", "http-api")
	router := httpapi.NewRouter(httpapi.NewHandler(manager, queries, apiLogger), deps.idempotencyRepo, apiLogger)

	sinks := openOutboxSinks(cfg, logger)
	defer sinks.Close(logger)

	workerOptions := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics()),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if sinks.dlq != nil {
		workerOptions = append(workerOptions, outbox.WithDLQPublisher(sinks.dlq))
	}
	outboxWorker := outbox.NewWorker(deps.outboxQueue, sinks.events, workerOptions...)

	cleanupWorker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithMetrics(metrics.NewCleanupMetrics()),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	healthHandler := healthcheck.NewHandler(version.String())
	healthHandler.RegisterChecker("storage", healthcheck.NewStorageChecker(deps.pinger))
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(deps.outboxQueue, cfg.OutboxMaxPendingAge))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		outboxWorker.Run(runCtx)
	}()
	go func() {
		defer workers.Done()
		cleanupWorker.Run(runCtx)
	}()

	metricsSrv := startMetricsServer(runCtx, cfg.MetricsAddr, logger, healthHandler)

	grpcServer, grpcHealth := newGRPCServer(logger)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		cancel()
		workers.Wait()
		shutdownHTTP(metricsSrv, logger)
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("gRPC health сервер слушает %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http api server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("сервер остановился с ошибкой")
	}

	grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownHTTP(apiSrv, logger)
	stopGRPC(grpcServer, logger)
	cancel()
	workers.Wait()
	shutdownHTTP(metricsSrv, logger)

	return runErr
}

// newGRPCServer создаёт gRPC-сервер со стандартным health-сервисом и reflection.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	grpcMetrics.InitializeMetrics(server)
	reflection.Register(server)

	return server, healthServer
}

func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// startMetricsServer запускает HTTP-сервер с /metrics и health-пробами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).WithField("addr", srv.Addr).Warn("http shutdown with error")
	}
}
