package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/data/repos"
	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/library"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	httpX "github.com/yungbote/mdr-library-backend/internal/http"
	httpH "github.com/yungbote/mdr-library-backend/internal/http/handlers"
	"github.com/yungbote/mdr-library-backend/internal/libraries"
	"github.com/yungbote/mdr-library-backend/internal/observability"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
	"github.com/yungbote/mdr-library-backend/internal/realtime/bus"
	"github.com/yungbote/mdr-library-backend/internal/services"
)

// DefaultLibraries is served when neither a catalogue file nor a relational
// store is configured.
var DefaultLibraries = []versioning.Library{
	{Name: "Sponsor", IsEditable: true},
	{Name: "CDISC", IsEditable: false},
}

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Backends *Backends
	Metrics  *observability.Metrics
	Policy   aggregates.LibraryPolicy
	Bus      bus.Bus

	Terms     services.LibraryItemService[library.Term]
	Templates services.LibraryItemService[library.Template]

	Server *httpX.Server

	filePolicy   *libraries.FilePolicy
	itemHandlers []httpX.RouteRegistrar
	otelShutdown func(context.Context) error
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	a := &App{
		Log:     log,
		Cfg:     cfg,
		Metrics: observability.Init(cfg.Metrics),
	}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	backends, err := OpenBackends(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.Backends = backends

	if err := a.wirePolicy(); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if err := a.wireBus(); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.Terms = registerEntity(ctx, a, termEntity)
	a.Templates = registerEntity(ctx, a, templateEntity)

	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	a.Server = httpX.NewServer(cfg.HTTPAddr, httpX.RouterConfig{
		Log:           log,
		ServiceName:   serviceName,
		CORSOrigins:   cfg.CORSOrigins,
		Metrics:       a.Metrics,
		HealthHandler: httpH.NewHealthHandler(a.Backends.Ping),
		ItemHandlers:  a.itemHandlers,
	})
	return a, nil
}

func (a *App) wirePolicy() error {
	switch {
	case strings.TrimSpace(a.Cfg.LibraryPolicyFile) != "":
		fp, err := libraries.NewFilePolicy(a.Cfg.LibraryPolicyFile, a.Log)
		if err != nil {
			return err
		}
		a.filePolicy = fp
		a.Policy = fp
	case a.Backends.Gorm != nil:
		a.Policy = libraries.NewRepoPolicy(repos.NewLibraryRepo(a.Backends.Gorm, a.Log))
	default:
		a.Policy = libraries.NewStaticPolicy(DefaultLibraries...)
	}
	return nil
}

func (a *App) wireBus() error {
	if strings.TrimSpace(a.Cfg.RedisAddr) == "" {
		a.Bus = bus.NewMemoryBus(a.Log)
		return nil
	}
	b, err := bus.NewRedisBus(a.Log, bus.RedisConfig{Addr: a.Cfg.RedisAddr, Channel: a.Cfg.RedisChannel})
	if err != nil {
		return fmt.Errorf("init lifecycle bus: %w", err)
	}
	a.Bus = b
	return nil
}

// Run serves HTTP and runs background watchers until ctx is done or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	if err := a.Bus.StartForwarder(gctx, func(ev domainagg.LifecycleEvent) {
		a.Log.Debug("lifecycle event", "entity_type", ev.EntityType, "uid", ev.UID, "seq", ev.Seq, "kind", ev.Kind, "status", ev.Status, "version", ev.Version)
	}); err != nil {
		a.Log.Warn("lifecycle event forwarder not started", "error", err)
	}
	a.Metrics.StartServer(gctx, a.Log, a.Cfg.Metrics.Addr)
	if a.filePolicy != nil {
		g.Go(func() error { return a.filePolicy.Run(gctx) })
	}
	g.Go(func() error {
		a.Log.Info("http server listening", "addr", a.Cfg.HTTPAddr, "backend", a.Backends.Kind)
		return a.Server.Run(gctx)
	})
	return g.Wait()
}

func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var first error
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			first = err
		}
	}
	if err := a.Backends.Close(ctx); err != nil && first == nil {
		first = err
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	a.Log.Sync()
	return first
}
