// Package bus fans committed lifecycle transitions out to subscribers.
package bus

import (
	"context"

	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
)

type Bus interface {
	PublishLifecycle(ctx context.Context, ev domainagg.LifecycleEvent) error
	// StartForwarder delivers every event published on the bus to onMsg until
	// ctx is done. It returns once the subscription is live.
	StartForwarder(ctx context.Context, onMsg func(ev domainagg.LifecycleEvent)) error
	Close() error
}
