package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/data/db"
	"github.com/yungbote/mdr-library-backend/internal/data/graph"
	"github.com/yungbote/mdr-library-backend/internal/data/memstore"
	"github.com/yungbote/mdr-library-backend/internal/observability"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
	"github.com/yungbote/mdr-library-backend/internal/platform/neo4jdb"
)

// Backends holds whichever connections the configured store backend needs.
type Backends struct {
	Kind  string
	Gorm  *gorm.DB
	Neo4j *neo4jdb.Client

	closers []func(ctx context.Context) error
}

func OpenBackends(ctx context.Context, log *logger.Logger, cfg Config) (*Backends, error) {
	b := &Backends{Kind: cfg.StoreBackend}
	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		pg, err := db.NewPostgresService(log, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		b.Gorm = pg.DB()
		b.closers = append(b.closers, func(context.Context) error { return pg.Close() })
	case BackendSQLite:
		lite, err := db.NewSQLiteService(log, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		b.Gorm = lite.DB()
		b.closers = append(b.closers, func(context.Context) error { return lite.Close() })
	case BackendNeo4j:
		client, err := neo4jdb.New(ctx, log, cfg.Neo4j)
		if err != nil {
			return nil, fmt.Errorf("init neo4j: %w", err)
		}
		if client == nil {
			return nil, fmt.Errorf("init neo4j: no uri configured")
		}
		b.Neo4j = client
		b.closers = append(b.closers, client.Close)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if b.Gorm != nil {
		if err := db.AutoMigrateAll(b.Gorm); err != nil {
			_ = b.Close(ctx)
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	return b, nil
}

// Ping checks the backing store for the health endpoint.
func (b *Backends) Ping(ctx context.Context) error {
	switch {
	case b == nil:
		return nil
	case b.Gorm != nil:
		sqlDB, err := b.Gorm.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	case b.Neo4j != nil:
		return b.Neo4j.Driver.VerifyConnectivity(ctx)
	default:
		return nil
	}
}

func (b *Backends) Close(ctx context.Context) error {
	if b == nil {
		return nil
	}
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// newStore builds the store for one entity type on the configured backend,
// behind the read cache when a ttl is set.
func newStore[V any](ctx context.Context, b *Backends, log *logger.Logger, cfg Config, metrics *observability.Metrics, entityType string) aggregates.Store[V] {
	var store aggregates.Store[V]
	switch {
	case b.Gorm != nil:
		store = aggregates.NewGormStore[V](aggregates.GormStoreDeps{
			DB:         b.Gorm,
			Log:        log,
			EntityType: entityType,
		}, aggregates.JSONCodec[V]{})
	case b.Neo4j != nil:
		gs := graph.NewLibraryItemStore[V](b.Neo4j, log, entityType, aggregates.JSONCodec[V]{})
		gs.EnsureSchema(ctx)
		store = gs
	default:
		store = memstore.New[V](log)
	}
	if cfg.ReadCacheTTL > 0 {
		store = aggregates.NewCachedStore[V](store, cfg.ReadCacheTTL, entityType, metrics)
	}
	return store
}
