package ctxutil

import (
	"context"
	"testing"
)

func TestRequestDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	if AuthorFrom(ctx) != "" {
		t.Fatalf("expected empty author")
	}
	ctx = WithRequestData(ctx, &RequestData{Author: " alice "})
	if got := AuthorFrom(ctx); got != "alice" {
		t.Fatalf("author: want=alice got=%q", got)
	}
	ctx = WithTraceData(ctx, &TraceData{RequestID: "r-1"})
	if td := GetTraceData(ctx); td == nil || td.RequestID != "r-1" {
		t.Fatalf("trace data lost: %+v", td)
	}
}
