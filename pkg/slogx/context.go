package slogx

import (
	"context"
	"log/slog"

	"github.com/jjcims/jjcims/pkg/idx"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithFlowID attaches a correlation id for one authentication or
// enrollment flow so its log lines can be grouped.
func WithFlowID(ctx context.Context) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("flow_id", idx.New().String()))
}
