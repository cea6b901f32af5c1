package ctxutil

import (
	"context"
	"strings"
)

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

type requestDataKey struct{}

// RequestData carries the caller identity resolved by the HTTP layer.
type RequestData struct {
	Author string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// AuthorFrom returns the request author or "".
func AuthorFrom(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return strings.TrimSpace(rd.Author)
	}
	return ""
}
