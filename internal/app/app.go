package app

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	redisx "github.com/yungbote/mindjourney-backend/internal/clients/redis"
	"github.com/yungbote/mindjourney-backend/internal/data/db"
	httpapi "github.com/yungbote/mindjourney-backend/internal/http"
	httpH "github.com/yungbote/mindjourney-backend/internal/http/handlers"
	"github.com/yungbote/mindjourney-backend/internal/insights/sweep"
	"github.com/yungbote/mindjourney-backend/internal/observability"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
	"github.com/yungbote/mindjourney-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	// Hub feeds /api/events. With redis configured it is filled by the
	// forwarder so every replica sees every event.
	Hub *realtime.Hub

	otelShutdown func(context.Context) error
}

// New opens the database, migrates it and wires every component. Nothing
// runs in the background until Serve or RunWorker is called.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	conn, err := db.Open(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(conn); err != nil {
		closeDB(conn)
		return nil, err
	}

	a := &App{Log: log, DB: conn, Cfg: cfg}
	a.Metrics = observability.Init(log)
	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	a.Repos = wireRepos(conn, log)
	a.Clients, err = wireClients(log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Hub = realtime.NewHub(log)
	var pub redisx.Publisher = a.Hub
	if a.Clients.Events != nil {
		pub = a.Clients.Events
	}
	a.Services, err = wireServices(conn, log, cfg, a.Repos, a.Clients, redisx.NewNotifier(log, pub))
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("App wired",
		"execution_mode", cfg.Insights.ExecutionMode,
		"temporal", a.Services.Temporal != nil,
		"redis", a.Clients.Redis != nil,
		"metrics", a.Metrics != nil,
	)
	return a, nil
}

// Background starts the queue consumer and the sweep loop on g.
func (a *App) Background(ctx context.Context, g *errgroup.Group) {
	a.Metrics.StartJobQueueCollector(ctx, a.Log, a.Repos.JobRuns)

	if bus := a.Clients.Events; bus != nil {
		if err := bus.StartForwarder(ctx, a.Hub.Forward); err != nil {
			a.Log.Warn("Event forwarder unavailable; /api/events will stay quiet", "error", err)
		}
	}

	if a.Cfg.Queued() {
		if a.Services.Temporal != nil {
			g.Go(func() error { return a.Services.Temporal.Start(ctx) })
		} else {
			a.Services.Worker.Start(ctx)
			g.Go(func() error {
				<-ctx.Done()
				a.Services.Worker.Wait()
				return nil
			})
		}
	}

	loop := &sweep.Loop{
		Sweeper:    a.Services.Sweeper,
		Interval:   a.Cfg.Insights.SweepInterval,
		RunOnStart: a.Cfg.Insights.RunStartupCheck,
		Log:        a.Log,
	}
	g.Go(func() error { return loop.Run(ctx) })
}

// Serve runs the HTTP API alongside the background loops until ctx ends.
func (a *App) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	a.Background(gctx, g)
	srv := a.HTTPServer()
	g.Go(func() error { return srv.Run(gctx, net.JoinHostPort("", a.Cfg.Port)) })
	return g.Wait()
}

// RunWorker runs only the background loops.
func (a *App) RunWorker(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	a.Background(gctx, g)
	return g.Wait()
}

func (a *App) HTTPServer() *httpapi.Server {
	var pinger httpH.Pinger
	if sqlDB, err := a.DB.DB(); err == nil {
		pinger = sqlDB
	}
	entries := a.Services.Entries
	return httpapi.NewServer(a.Log, httpapi.RouterConfig{
		Log:             a.Log,
		Metrics:         a.Metrics,
		CORSOrigins:     a.Cfg.CORSOrigins,
		ServiceName:     a.Cfg.ServiceName,
		EntryHandler:    httpH.NewEntryHandler(entries),
		InsightsHandler: httpH.NewInsightsHandler(entries),
		HealthHandler:   httpH.NewHealthHandler(pinger),
		EventsHandler:   httpH.NewEventsHandler(a.Hub),
	})
}

// Events returns the redis event bus, or nil when REDIS_ADDR is unset.
func (a *App) Events() *redisx.EventBus { return a.Clients.Events }

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.close(a.Log)
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	closeDB(a.DB)
	a.Log.Sync()
}

func closeDB(conn *gorm.DB) {
	if conn == nil {
		return
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
