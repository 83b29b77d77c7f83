package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/api"
	"github.com/tsarna/parley/pkg/parley/auth"
	"github.com/tsarna/parley/pkg/parley/config"
	"github.com/tsarna/parley/pkg/parley/hub"
	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/otel"
	"github.com/tsarna/parley/pkg/parley/realtime"
	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/stats"
	"github.com/tsarna/parley/pkg/parley/store/memory"
	"github.com/tsarna/parley/pkg/parley/userservice"
)

const serviceName = "parley"

// version is overridden at link time.
var version = "dev"

// app holds everything the server command starts and stops.
type app struct {
	logger    *zap.Logger
	cfg       *config.Config
	hub       *hub.Hub
	listener  *realtime.Listener
	router    *api.Router
	http      *http.Server
	scheduler *stats.Scheduler
	job       *stats.Job
}

// newApp wires the server from cfg. When otelMetrics is false metrics are
// kept in an in-process recorder whose snapshots the stats job logs.
func newApp(cfg *config.Config, logger *zap.Logger, otelMetrics bool) (*app, error) {
	provider := otel.NewProvider(serviceName, version)

	var metrics o11y.MetricsProvider = provider
	var recorder *o11y.Recorder
	if !otelMetrics {
		recorder = o11y.NewRecorder(serviceName)
		metrics = recorder
	}

	users, validator, err := identity(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := memory.NewStore(users, logger.Named("store"))

	h, err := hub.NewConfig().
		WithLogger(logger.Named("hub")).
		WithChats(store).
		WithMessages(store).
		WithMembership(store).
		WithFriends(memory.NewFriends(users, logger.Named("friends"))).
		WithUsers(users).
		WithMetrics(metrics).
		WithTracing(provider).
		WithTraceTopics(cfg.WebSocket.TraceTopics...).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build hub: %w", err)
	}

	listener, err := realtime.NewListenerConfig().
		WithHub(h).
		WithValidator(validator).
		WithLogger(logger.Named("realtime")).
		WithMetrics(metrics).
		WithTracing(provider).
		WithQueueSize(cfg.WebSocket.QueueSize).
		WithPingInterval(cfg.WebSocket.PingInterval).
		WithWriteTimeout(cfg.WebSocket.WriteTimeout).
		WithReadTimeout(cfg.WebSocket.ReadTimeout).
		WithReadLimit(cfg.WebSocket.ReadLimit).
		WithOriginPatterns(cfg.WebSocket.OriginPatterns...).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build listener: %w", err)
	}

	router, err := api.NewConfig().
		WithHub(h).
		WithListener(listener).
		WithValidator(validator).
		WithLogger(logger.Named("api")).
		WithTracing(provider).
		WithBasePath(cfg.Server.BasePath).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	a := &app{
		logger:   logger,
		cfg:      cfg,
		hub:      h,
		listener: listener,
		router:   router,
		http: &http.Server{
			Addr:              cfg.Server.Listen,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if cfg.Stats.Enabled {
		a.job = stats.NewJob(h, listener, recorder, logger.Named("stats"))
		a.scheduler, err = stats.NewScheduler(cfg.Stats.Schedule, cfg.Stats.Location, a.job, logger)
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

// identity picks the user directory and token validator. A remote user
// service, when configured, owns user records; an HMAC secret, when
// configured, validates tokens locally.
func identity(cfg *config.Config, logger *zap.Logger) (repository.UserDirectory, repository.TokenValidator, error) {
	var users repository.UserDirectory
	var validator repository.TokenValidator

	if cfg.Auth.UserService != "" {
		remote, err := userservice.New(cfg.Auth.UserService,
			userservice.WithLogger(logger.Named("userservice")),
			userservice.WithTimeout(cfg.Auth.Timeout),
		)
		if err != nil {
			return nil, nil, err
		}
		users = remote
		validator = remote
		if len(cfg.Users) > 0 {
			logger.Warn("Ignoring directory users, a user service is configured", zap.Int("users", len(cfg.Users)))
		}
	} else {
		users = memory.NewDirectory(cfg.Users...)
	}

	if cfg.Auth.HMACSecret != "" {
		verifier, err := auth.NewHMACVerifier(cfg.Auth.HMACSecret, cfg.Auth.Leeway)
		if err != nil {
			return nil, nil, err
		}
		verifier.WithAudience(cfg.Auth.Audience)
		validator = auth.NewLocalValidator(verifier, logger.Named("auth"))
	}

	if validator == nil {
		return nil, nil, errors.New("no token validator configured")
	}

	return users, validator, nil
}

// run serves until ctx is cancelled, then shuts down within the configured
// timeout.
func (a *app) run(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Listening", zap.String("addr", a.http.Addr), zap.String("base_path", a.cfg.Server.BasePath))
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			a.stopScheduler()
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return a.shutdown()
}

func (a *app) shutdown() error {
	a.logger.Info("Shutting down", zap.Duration("timeout", a.cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.stopScheduler()

	var errs []error
	if err := a.listener.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("listener shutdown: %w", err))
	}
	if err := a.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if len(errs) == 0 {
		a.logger.Info("Shutdown complete")
	}
	return errors.Join(errs...)
}

func (a *app) stopScheduler() {
	if a.scheduler == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.scheduler.Stop(ctx); err != nil {
		a.logger.Warn("Stats job still running at shutdown", zap.Error(err))
	}
}
