package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repos fall back to their own handle when Tx is nil.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// New returns a non-transactional context.
func New(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

type txKey struct{}

// WithTx returns ctx carrying tx, so collaborators called inside a unit of
// work read through the same transaction.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// FromContext is New plus whatever transaction WithTx attached to ctx.
func FromContext(ctx context.Context) Context {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return Context{Ctx: ctx, Tx: tx}
}
