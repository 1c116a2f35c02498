package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

// Component installs the process tracer provider. otelchi and the redis
// command hook both pick it up through the otel globals.
type Component struct {
	*core.BaseComponent
	cfg           *Config
	tp            *sdktrace.TracerProvider
	prevTP        trace.TracerProvider
	shutdownFuncs []func(context.Context) error
}

func NewComponent(cfg *Config) *Component {
	return &Component{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_TELEMETRY, consts.COMPONENT_LOGGING),
		cfg:           cfg,
	}
}

func (c *Component) Start(ctx context.Context) error {
	if err := c.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if c.cfg.ServiceName == "" {
		c.SetActive(false)
		return errors.New("telemetry service_name must be set")
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(c.cfg.ServiceName)),
	)
	if errors.Is(err, resource.ErrPartialResource) {
		logging.Warn(ctx, "telemetry resource partially detected", zap.Error(err))
	} else if err != nil {
		c.SetActive(false)
		return fmt.Errorf("resource init: %w", err)
	}

	exp, err := c.newExporter(ctx)
	if err != nil {
		c.shutdown(ctx)
		c.SetActive(false)
		return fmt.Errorf("trace exporter init: %w", err)
	}

	c.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	// provider first so its batcher flushes before any file it writes to closes
	c.shutdownFuncs = append([]func(context.Context) error{c.tp.Shutdown}, c.shutdownFuncs...)

	c.prevTP = otel.GetTracerProvider()
	otel.SetTracerProvider(c.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logging.Info(ctx, "telemetry component started",
		zap.String("exporter", string(c.cfg.Exporter)),
		zap.Float64("sample_ratio", c.cfg.SampleRatio),
		zap.String("service_name", c.cfg.ServiceName),
	)
	return nil
}

func (c *Component) newExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch c.cfg.Exporter {
	case ExporterStdout:
		w, err := c.stdoutWriter()
		if err != nil {
			return nil, err
		}
		opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
		if c.cfg.Pretty {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		return stdouttrace.New(opts...)
	case ExporterOTLP:
		if c.cfg.OTLP == nil || c.cfg.OTLP.Endpoint == "" {
			return nil, errors.New("otlp exporter selected but otlp.endpoint empty")
		}
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(c.cfg.OTLP.Endpoint),
			otlptracegrpc.WithTimeout(c.cfg.OTLP.Timeout),
		}
		if c.cfg.OTLP.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported exporter: %s", c.cfg.Exporter)
}

func (c *Component) stdoutWriter() (io.Writer, error) {
	if c.cfg.StdoutFile == "" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(c.cfg.StdoutFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open telemetry stdout file: %w", err)
	}
	c.shutdownFuncs = append(c.shutdownFuncs, func(context.Context) error { return f.Close() })
	return f, nil
}

func (c *Component) shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range c.shutdownFuncs {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := fn(sctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	c.shutdownFuncs = nil
	return errors.Join(errs...)
}

// Stop flushes pending spans and puts the previous provider back.
func (c *Component) Stop(ctx context.Context) error {
	defer c.BaseComponent.Stop(ctx)
	if c.tp == nil {
		return nil
	}
	if otel.GetTracerProvider() == c.tp && c.prevTP != nil {
		otel.SetTracerProvider(c.prevTP)
	}
	err := c.shutdown(ctx)
	c.tp = nil
	if err != nil {
		logging.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		return err
	}
	logging.Info(ctx, "telemetry stopped")
	return nil
}

func (c *Component) HealthCheck() error {
	if err := c.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if c.tp == nil {
		return errors.New("tracer provider not initialized")
	}
	return nil
}

// Tracer returns a tracer from this component's provider, or the global one
// before Start.
func (c *Component) Tracer(name string) trace.Tracer {
	if c.tp == nil {
		return otel.Tracer(name)
	}
	return c.tp.Tracer(name)
}
