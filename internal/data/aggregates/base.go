package aggregates

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/observability"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

type BaseDeps struct {
	Log    *logger.Logger
	Hooks  Hooks
	Tracer trace.Tracer
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.Tracer == nil {
		d.Tracer = observability.Tracer()
	}
	return d
}

func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	ctx, span := deps.Tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	var err error
	if fn != nil {
		err = fn(ctx)
	}
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.IncRetry(op)
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, status)
	}
	span.SetAttributes(attribute.String("aggregate.status", status))
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
