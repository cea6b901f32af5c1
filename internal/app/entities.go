package app

import (
	"context"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/library"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	httpH "github.com/yungbote/mdr-library-backend/internal/http/handlers"
	"github.com/yungbote/mdr-library-backend/internal/services"
)

// entitySpec plugs one payload type into the shared engine.
type entitySpec[V any] struct {
	EntityType string
	Collection string
	Equal      versioning.EqualFunc[V]
	Validate   func(V) error
}

var (
	termEntity = entitySpec[library.Term]{
		EntityType: library.EntityTerm,
		Collection: "terms",
		Equal:      library.Term.Equal,
		Validate:   library.Term.Validate,
	}
	templateEntity = entitySpec[library.Template]{
		EntityType: library.EntityTemplate,
		Collection: "templates",
		Equal:      library.Template.Equal,
		Validate:   library.Template.Validate,
	}
)

// registerEntity wires store, aggregate, service and handler for one entity
// type and returns the service.
func registerEntity[V any](ctx context.Context, a *App, spec entitySpec[V]) services.LibraryItemService[V] {
	store := newStore[V](ctx, a.Backends, a.Log, a.Cfg, a.Metrics, spec.EntityType)
	agg := aggregates.NewLibraryItemAggregate(aggregates.LibraryItemAggregateDeps[V]{
		Base: aggregates.BaseDeps{
			Log:   a.Log,
			Hooks: aggregates.NewObservabilityHooks(a.Metrics),
		},
		EntityType: spec.EntityType,
		Store:      store,
		Engine:     versioning.NewEngine[V](spec.Equal),
		Policy:     a.Policy,
		Events:     a.Bus,
		Metrics:    a.Metrics,
	})
	svc := services.NewLibraryItemService(services.LibraryItemServiceDeps[V]{
		Log:           a.Log,
		Aggregate:     agg,
		Validate:      spec.Validate,
		RetryAttempts: a.Cfg.ConflictRetryAttempts,
	})
	a.itemHandlers = append(a.itemHandlers, httpH.NewLibraryItemHandler(a.Log, spec.Collection, svc))
	a.Log.Info("entity type registered", "entity_type", spec.EntityType, "collection", spec.Collection, "backend", a.Backends.Kind)
	return svc
}
