package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudops/internal/cloudapi"
	"cloudops/internal/config"
	"cloudops/internal/distributed"
	"cloudops/internal/jobs"
	"cloudops/internal/metrics"
	"cloudops/internal/pki"
	"cloudops/internal/provisioner"
	"cloudops/internal/rotation"
	"cloudops/internal/version"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisprometheus/v9"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

// Server is the long running reconciler behind the serve command. It keeps
// declared namespaces provisioned and their client CAs rotated.
type Server struct {
	cfg         *config.Config
	logger      *slog.Logger
	debugServer *http.Server
	redis       redis.UniversalClient
	election    *distributed.Election
	resigned    chan struct{}
	jobManager  *jobs.JobManager
	ctx         context.Context
	cancel      context.CancelFunc
}

func New(cfg *config.Config, svc cloudapi.NamespaceService, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("namespace service is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	var elector jobs.LeaderElector
	if cfg.Distributed != nil && cfg.Distributed.Enabled {
		s.redis = distributed.NewRedisClient(cfg.Redis, logger)

		if cfg.Server.Debug != nil && cfg.Server.Debug.Enabled {
			collector := redisprometheus.NewCollector(metrics.Namespace, "election", s.redis)
			if err := prometheus.Register(collector); err != nil {
				logger.Debug("failed to register redis election collector: already registered", "error", err)
			}
		}

		hostname := os.Getenv("HOSTNAME")
		if hostname == "" {
			hostname = uuid.New().String()
		}

		s.election = distributed.NewElection(s.redis, hostname, cfg.Distributed.TTL, logger)
		elector = s.election
	}

	factory := pki.NewFactory(cfg.Rotation.CA)
	prov := provisioner.New(svc, factory, provisioner.OptionsFromConfig(cfg), logger)
	rotator := rotation.New(svc, factory, rotation.OptionsFromConfig(cfg.Rotation), logger)

	s.jobManager = jobs.NewJobManager(elector, logger)
	if len(cfg.Namespaces) > 0 {
		s.jobManager.Register(jobs.NewProvisionJob(prov, cfg.Namespaces, cfg.Provisioning.CheckInterval, logger))
		s.jobManager.Register(jobs.NewRotationJob(rotator, cfg, logger))
	} else {
		logger.Warn("no namespaces declared, nothing to reconcile")
	}

	if cfg.Server.Debug != nil && cfg.Server.Debug.Enabled {
		if err := prometheus.Register(version.Collector()); err != nil {
			logger.Debug("build info collector already registered", "error", err)
		}
		s.debugServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Debug.Host, cfg.Server.Debug.Port),
			Handler:           s.setupDebugRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return s, nil
}

// Start runs until SIGINT, SIGTERM or a fatal listener error, then shuts the
// jobs and debug server down.
func (s *Server) Start() error {
	if s.election != nil {
		s.resigned = make(chan struct{})
		go func() {
			defer close(s.resigned)
			s.election.Start(s.ctx)
		}()
	}

	s.jobManager.Start(s.ctx)

	if s.election != nil {
		s.logger.Info("reconciler started", "version", version.GetVersion(), "instance", s.election.InstanceID)
	} else {
		s.logger.Info("reconciler started", "version", version.GetVersion())
	}

	if s.debugServer != nil {
		go func() {
			s.logger.Info("debug server starting", "address", s.debugServer.Addr)
			if err := s.debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("debug server failed to start", "error", err)
				s.cancel()
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		s.logger.Info("shutdown signal received")
	case <-s.ctx.Done():
		s.logger.Info("context canceled")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	s.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	s.jobManager.Shutdown(shutdownCtx)

	var errs []error
	if s.debugServer != nil {
		if err := s.debugServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("debug server forced to shutdown", "error", err)
			errs = append(errs, err)
		}
	}
	if s.resigned != nil {
		select {
		case <-s.resigned:
		case <-shutdownCtx.Done():
			s.logger.Warn("leader election did not resign before the shutdown deadline")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	s.logger.Info("reconciler stopped")
	return errors.Join(errs...)
}
