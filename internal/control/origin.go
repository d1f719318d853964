package control

import (
	"context"

	"github.com/google/uuid"
)

// Origin identifies who asked for a write. It is recorded in the ledger and carried
// on published events.
type Origin struct {
	Source        string
	CorrelationID string
}

type originKey struct{}

// WithOrigin attaches an origin to ctx. An empty correlation id is generated.
func WithOrigin(ctx context.Context, source, correlationID string) context.Context {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return context.WithValue(ctx, originKey{}, Origin{Source: source, CorrelationID: correlationID})
}

// OriginFrom returns the origin attached to ctx. Without one, the source is "internal"
// and a fresh correlation id is generated.
func OriginFrom(ctx context.Context) Origin {
	if o, ok := ctx.Value(originKey{}).(Origin); ok {
		return o
	}
	return Origin{Source: "internal", CorrelationID: uuid.NewString()}
}

// LookupOrigin returns the origin attached to ctx, if any.
func LookupOrigin(ctx context.Context) (Origin, bool) {
	o, ok := ctx.Value(originKey{}).(Origin)
	return o, ok
}

// EnsureOrigin keeps an origin already attached to ctx and otherwise attaches one
// for source with a fresh correlation id.
func EnsureOrigin(ctx context.Context, source string) context.Context {
	if _, ok := ctx.Value(originKey{}).(Origin); ok {
		return ctx
	}
	return WithOrigin(ctx, source, "")
}
