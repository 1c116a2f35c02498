package redis

import (
	"context"
	"errors"
	"net"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"

// tracingHook opens a client span per command and per pipeline. The tracer
// is looked up on every call so a provider installed after the pool was
// built still applies.
type tracingHook struct {
	attrs []attribute.KeyValue
}

func newTracingHook(cfg *Configuration) tracingHook {
	attrs := []attribute.KeyValue{
		attribute.String("db.system.name", "redis"),
		attribute.Int("db.namespace", cfg.DatabaseIndex()),
	}
	if len(cfg.Addresses) > 0 {
		attrs = append(attrs,
			attribute.String("server.address", cfg.Addresses[0].Host),
			attribute.Int("server.port", cfg.Addresses[0].Port),
		)
	}
	return tracingHook{attrs: attrs}
}

func (h tracingHook) start(ctx context.Context, name string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(h.attrs...),
		trace.WithAttributes(extra...),
	)
}

func (h tracingHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		ctx, span := h.start(ctx, "redis dial", attribute.String("network.peer.address", addr))
		defer span.End()
		conn, err := next(ctx, network, addr)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return conn, err
	}
}

func (h tracingHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		op := strings.ToUpper(cmd.Name())
		ctx, span := h.start(ctx, "redis "+op, attribute.String("db.operation.name", op))
		defer span.End()
		err := next(ctx, cmd)
		recordErr(span, err)
		return err
	}
}

func (h tracingHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		ctx, span := h.start(ctx, "redis pipeline", attribute.Int("db.operation.batch.size", len(cmds)))
		defer span.End()
		err := next(ctx, cmds)
		recordErr(span, err)
		return err
	}
}

// recordErr marks the span failed; a nil reply is not a failure.
func recordErr(span trace.Span, err error) {
	if err == nil || errors.Is(err, goredis.Nil) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
