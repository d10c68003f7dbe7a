// Package main is the entry point for the StaffDesk BFF server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"

	"github.com/pitabwire/staffdesk/internal/authz"
	"github.com/pitabwire/staffdesk/internal/backend"
	"github.com/pitabwire/staffdesk/internal/capability"
	"github.com/pitabwire/staffdesk/internal/config"
	"github.com/pitabwire/staffdesk/internal/feature"
	"github.com/pitabwire/staffdesk/internal/intercept"
	"github.com/pitabwire/staffdesk/internal/observability"
	"github.com/pitabwire/staffdesk/internal/query"
	"github.com/pitabwire/staffdesk/internal/session"
	"github.com/pitabwire/staffdesk/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()
	slog.SetDefault(slog.New(zapslog.NewHandler(logger.Core())))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "staffdesk-bff", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(prometheus.DefaultRegisterer)
	}

	// Step 4: Load the role policy and build the permission resolver.
	policy, err := capability.NewStaticPolicy(cfg.Capability.PolicyFile)
	if err != nil {
		logger.Error("role policy load failed", zap.Error(err))
		return 1
	}
	resolver := capability.NewResolver(policy, cfg.Capability.Cache.TTL, cfg.Capability.Cache.MaxEntries)

	// Step 5: Open session storage.
	store, storeCloser, err := session.OpenStorage(ctx, cfg.Session)
	if err != nil {
		logger.Error("session storage initialization failed", zap.Error(err))
		return 1
	}
	logger.Info("session storage ready", zap.String("driver", cfg.Session.Store.Driver))

	var sessionOpts []session.ManagerOption
	if metrics != nil {
		sessionOpts = append(sessionOpts, session.WithRecorder(metrics))
	}
	sessions := session.NewManager(store, resolver, sessionOpts...)

	hashKey, blockKey := transport.CookieKeysFromEnv(cfg.Session)
	cookie, err := transport.NewSessionCookie(cfg.Session, hashKey, blockKey)
	if err != nil {
		logger.Error("session cookie initialization failed", zap.Error(err))
		return 1
	}

	// Step 6: Load the UI route table and build the gate.
	routes := authz.NewRouteTable()
	if cfg.Authorization.RoutesFile != "" {
		routes, err = authz.LoadRouteTable(cfg.Authorization.RoutesFile)
		if err != nil {
			logger.Error("route table load failed", zap.Error(err))
			return 1
		}
	}
	gateOpts := []authz.Option{
		authz.WithRoutes(routes),
		authz.WithPaths(cfg.Authorization.LoginPath, cfg.Authorization.UnauthorizedPath),
		authz.WithLocale(cfg.Authorization.Locale),
	}
	if metrics != nil {
		gateOpts = append(gateOpts, authz.WithRecorder(metrics))
	}
	gate := authz.NewGate(gateOpts...)

	// Step 7: Build the backend client and its transport chain.
	allowList := cfg.Backend.CaseAllowList
	if cfg.Backend.SpecFile != "" {
		fromSpec, err := intercept.AllowListFromSpec(cfg.Backend.SpecFile)
		if err != nil {
			logger.Error("backend spec load failed", zap.Error(err))
			return 1
		}
		allowList = intercept.MergeAllowLists(allowList, fromSpec)
	}

	caseTransport := &intercept.CaseTransport{AllowList: allowList}
	var clientOpts []backend.Option
	if metrics != nil {
		caseTransport.Observe = func(d intercept.Direction) { metrics.RecordCaseConversion(string(d)) }
		clientOpts = append(clientOpts, backend.WithRecorder(metrics))
	}
	rt := &intercept.AuthTransport{Base: caseTransport, Token: session.TokenFrom}
	client := backend.NewClient(cfg.Backend, rt, clientOpts...)

	// Step 8: Bind the HR entities.
	featureOpts := feature.Options{
		Mock:        cfg.Query.Mock,
		MockDelay:   cfg.Query.MockDelay,
		BulkLimit:   cfg.Query.BulkConcurrency,
		MaxPageSize: cfg.Query.MaxPageSize,
		Sequencer:   query.NewSequencer(),
	}
	if metrics != nil {
		featureOpts.Recorder = metrics
	}
	resources := feature.Build(client, featureOpts)

	var auth feature.Authenticator = feature.NewBackendAuth(client)
	if cfg.Query.Mock {
		logger.Warn("mock mode enabled, backend calls are served from static data")
		auth = feature.NewMockAuth(cfg.Session.TTL)
	}

	// Step 9: Build HTTP router.
	readinessChecks := observability.ReadinessChecks{
		RoutesLoaded: func() bool { return gate.Routes().Len() > 0 },
		PolicyLoaded: func() bool { return policy.Roles() > 0 },
		SessionStore: store,
	}
	if !cfg.Query.Mock {
		readinessChecks.Backend = client.Breaker()
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:    cfg,
		Auth:      auth,
		Sessions:  sessions,
		Cookie:    cookie,
		Gate:      gate,
		Resources: resources,
		Metrics:   metrics,
		Readiness: readinessChecks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 10: Start background tasks.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	go runPolicyReloader(bgCtx, policy, resolver, cfg.Capability.Cache.TTL, logger)

	// Step 11: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("resources", len(resources)),
		zap.Int("routes", routes.Len()),
		zap.Int("roles", policy.Roles()),
		zap.Bool("mock", cfg.Query.Mock),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()

	if storeCloser != nil {
		storeCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// runPolicyReloader periodically re-reads the role policy file and drops
// cached permission sets when it changed.
func runPolicyReloader(ctx context.Context, policy *capability.StaticPolicy, resolver *capability.Resolver, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := policy.Sync(); err != nil {
				logger.Error("role policy reload failed", zap.Error(err))
				continue
			}
			resolver.Invalidate()
		}
	}
}
