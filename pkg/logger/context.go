package logger

import (
	"context"
	"sync"
)

// Field names shared by every request log line.
const (
	KeyTraceID   = "trace_id"
	KeyActorID   = "actor_id"
	KeyBookingID = "booking_id"
	KeyPaymentID = "payment_id"
)

type fieldsKey struct{}

// fields is one request's annotation set. Handlers deeper in the chain append to the same set,
// so the access log written by the outermost middleware sees what they learned.
type fields struct {
	mu    sync.Mutex
	attrs []any
}

// Track makes sure ctx carries an annotation set and returns the context holding it.
func Track(ctx context.Context) context.Context {
	if _, ok := ctx.Value(fieldsKey{}).(*fields); ok {
		return ctx
	}
	return context.WithValue(ctx, fieldsKey{}, &fields{})
}

// With annotates the request in ctx with key/value pairs.
func With(ctx context.Context, kv ...any) context.Context {
	ctx = Track(ctx)
	Annotate(ctx, kv...)
	return ctx
}

// Annotate adds key/value pairs to the annotation set already tracked by ctx. Without one it does
// nothing, so handlers can call it whether or not the access log middleware is mounted.
func Annotate(ctx context.Context, kv ...any) {
	if f, ok := ctx.Value(fieldsKey{}).(*fields); ok {
		f.mu.Lock()
		f.attrs = append(f.attrs, kv...)
		f.mu.Unlock()
	}
}

// Attrs returns a copy of the annotations gathered so far.
func Attrs(ctx context.Context) []any {
	f, ok := ctx.Value(fieldsKey{}).(*fields)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.attrs...)
}
