package bootstrap

import (
	"context"

	"github.com/charmbracelet/log"

	"ipsentry/internal/alert"
	"ipsentry/internal/analysis"
	"ipsentry/internal/blocklist"
	"ipsentry/internal/config"
	"ipsentry/internal/database"
	"ipsentry/internal/geolocation"
	"ipsentry/internal/jobs/maintenance"
	"ipsentry/internal/jobs/runtime"
	"ipsentry/internal/pipeline"
)

// Components are the wired collaborators of a running analyzer process.
type Components struct {
	Registry *blocklist.Registry
	Resolver *geolocation.Resolver
	Tracker  *pipeline.Tracker
	Engine   *analysis.Engine
	Alerts   alert.Sender
}

// Setup loads settings, connects the database, and wires the component graph.
// It does not start any background routines; see StartRoutines.
func Setup(ctx context.Context) (*Components, error) {
	config.ReadSettings()

	if _, err := database.SetupDB(); err != nil {
		return nil, err
	}
	config.SetIntervals()

	registry := blocklist.NewRegistry()
	if err := registry.Refresh(ctx); err != nil {
		log.Warn("Initial block registry refresh failed", "error", err)
	}

	resolver := geolocation.NewResolverFromConfig()
	alerts := alert.NewSenderFromEnv()

	tracker := pipeline.NewTracker(registry, pipeline.WithGeoResolver(resolver))
	engine := analysis.NewEngine(
		analysis.WithAlertSender(alerts),
		analysis.WithEscalator(analysis.NewEscalator(alerts)),
	)

	return &Components{
		Registry: registry,
		Resolver: resolver,
		Tracker:  tracker,
		Engine:   engine,
		Alerts:   alerts,
	}, nil
}

// StartRoutines launches the registry refresh loop and the leader-locked
// periodic jobs. They all stop when ctx is cancelled.
func StartRoutines(ctx context.Context, c *Components) {
	go c.Registry.StartRefreshRoutine(ctx)

	runtime.StartAnomalyDetectionRoutine(ctx, c.Engine)
	runtime.StartSuspicionSweepRoutine(ctx)
	runtime.StartActivityReportRoutine(ctx, c.Alerts)
	maintenance.StartMaintenanceRoutine(ctx, c.Resolver)
}
