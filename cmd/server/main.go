// Command server runs the packassist chat API for packing-station incident triage.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/httpserver"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/packassist/internal/app"
	"github.com/linnemanlabs/packassist/internal/postgres"
	"github.com/linnemanlabs/packassist/internal/session"
	"github.com/linnemanlabs/packassist/internal/triage"
)

const appName = "packassist"
const component = "server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var c serverConfig
	c.registerFlags(flag.CommandLine)
	flag.Parse()
	if c.showVersion {
		printVersion(os.Stdout)
		return nil
	}

	// env vars with prefix PACKASSIST_ fill flags not given on the command line
	cfg.FillFromEnv(flag.CommandLine, "PACKASSIST_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := c.validate(); err != nil {
		return err
	}

	lg, err := log.New(c.log.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", c.app.APIPort,
		"admin_port", c.ops.Port,
		"oracle_provider", c.app.OracleProvider,
		"session_store", c.app.SessionStore,
		"postgres", c.app.DatabaseURL != "",
		"mysql", c.app.MySQLDSN != "",
		"email_escalation", c.app.SMTPHost != "",
		"slack_escalation", c.app.SlackWebhookURL != "",
		"enable_pprof", c.ops.EnablePprof,
		"enable_pyroscope", c.prof.EnablePyroscope,
		"enable_tracing", c.trace.EnableTracing,
		"otlp_endpoint", c.trace.OTLPEndpoint,
		"trusted_proxy_hops", c.httpmw.TrustedProxyHops,
	)

	// profiling first so it covers startup
	profOpts := c.prof.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
		"build_id":  vi.BuildId,
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", c.prof.PyroServer)
	}

	traceOpts := c.trace.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version
	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, &vi)
	m.SetProfilingActive(profErr == nil && c.prof.EnablePyroscope)
	triageMetrics := triage.NewMetrics(m.Registry())

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "packassist_db_query_duration_seconds",
		Help:    "Duration of individual database queries by calling store method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"caller", "outcome"})
	m.Registry().MustRegister(dbQueryDuration)
	postgres.SetQueryObserver(postgres.QueryObserverFunc(
		func(_ context.Context, caller, outcome string, dur time.Duration) {
			dbQueryDuration.WithLabelValues(caller, outcome).Observe(dur.Seconds())
		},
	))

	incidentStore, closeStore, err := app.OpenIncidentStore(ctx, &c.app, L)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			L.Error(context.Background(), err, "failed to close incident store")
		}
	}()
	if err := app.SeedIfEmpty(ctx, incidentStore, c.app.KnownFailuresFile, L); err != nil {
		return fmt.Errorf("seed known failures: %w", err)
	}

	sessions, closeSessions, err := app.OpenSessions(ctx, &c.app, L)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSessions(); err != nil {
			L.Error(context.Background(), err, "failed to close session store")
		}
	}()

	reaper, err := session.NewReaper(sessions, c.app.SessionReapSchedule, c.app.SessionIdleTTL, L)
	if err != nil {
		return err
	}
	reaper.OnReap = triageMetrics.ObserveReap
	reapCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		reaper.Run(reapCtx)
	}()

	provider, err := app.NewProvider(&c.app)
	if err != nil {
		return err
	}
	if provider == nil {
		L.Warn(ctx, "no language model configured, replies use built-in templates")
	}
	notifier, err := app.NewNotifier(&c.app, L)
	if err != nil {
		return err
	}

	svc, err := app.NewService(&c.app, app.Deps{
		Store:    incidentStore,
		Sessions: sessions,
		Provider: provider,
		Notifier: notifier,
		Hooks:    triageMetrics.Hooks(),
		Logger:   L,
	})
	if err != nil {
		return fmt.Errorf("triage service init: %w", err)
	}

	// readiness fails once shutdown starts so the load balancer drains us
	var shutdownGate health.ShutdownGate
	readiness := health.All(shutdownGate.Probe())
	liveness := health.Fixed(true, "")

	opsOpts := c.ops.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic
	opsHTTPStop, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}

	if c.app.APIToken == "" {
		L.Warn(ctx, "api-token not set, chat API is unauthenticated")
	}
	h := newAPIHandler(handlerDeps{
		logger:      L,
		chat:        svc,
		apiToken:    c.app.APIToken,
		trustedHops: c.httpmw.TrustedProxyHops,
		healthz:     health.HealthzHandler(liveness),
		readyz:      health.ReadyzHandler(readiness),
		metrics:     m.Middleware,
	})

	apiOpts, err := c.http.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		return err
	}
	apiHTTPStop, err := httpserver.Start(ctx, fmt.Sprintf(":%d", c.app.APIPort), h, L, apiOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		return err
	}

	if err := notifySystemd(); err != nil {
		// systemd kills us after its start timeout if this really mattered
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	shutdownGate.Set("draining")
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	waitDrain(L, time.Duration(c.app.DrainSeconds)*time.Second, forceCh)
	signal.Stop(forceCh)

	stopAll(L, time.Duration(c.app.ShutdownBudgetSeconds)*time.Second, []stopper{
		{"api http server", apiHTTPStop},
		{"session reaper", func(ctx context.Context) error {
			stopReaper()
			select {
			case <-reaperDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		{"ops http server", opsHTTPStop},
		{"otel", shutdownOtelx},
	})
	if stopProf != nil {
		stopProf()
	}

	L.Info(context.Background(), "shutdown complete")
	return nil
}
