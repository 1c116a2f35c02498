package http_server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

type HTTPServerComponent struct {
	*core.BaseComponent
	cfg       *HTTPServerConfig
	container *core.Container
	router    chi.Router
	server    *http.Server
	listener  net.Listener
	extras    []RouteRegisterFunc
	started   bool
}

// NewHTTPServerComponent creates the component. Redis, prometheus and
// telemetry are optional dependencies so they are running before routes are
// mounted.
func NewHTTPServerComponent(cfg *HTTPServerConfig, c *core.Container) *HTTPServerComponent {
	return &HTTPServerComponent{
		BaseComponent: core.NewBaseComponent(
			consts.COMPONENT_HTTP_SERVER,
			consts.COMPONENT_LOGGING,
			core.Optional(consts.COMPONENT_REDIS),
			core.Optional(consts.COMPONENT_PROMETHEUS),
			core.Optional(consts.COMPONENT_TELEMETRY),
		),
		cfg:       cfg,
		container: c,
	}
}

func (hc *HTTPServerComponent) AddRouteRegistrar(fn RouteRegisterFunc) error {
	if fn == nil {
		return nil
	}
	if hc.started {
		return fmt.Errorf("cannot register route: http_server already started (use BeforeStart hook)")
	}
	hc.extras = append(hc.extras, fn)
	return nil
}

func (hc *HTTPServerComponent) Router() chi.Router { return hc.router }

// Addr returns the bound listener address once started.
func (hc *HTTPServerComponent) Addr() string {
	if hc.listener == nil {
		return ""
	}
	return hc.listener.Addr().String()
}

func (hc *HTTPServerComponent) Start(ctx context.Context) error {
	if err := hc.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if hc.cfg == nil || !hc.cfg.Enabled {
		return errors.New("http_server component enabled flag mismatch")
	}

	hc.applyDefaults()

	router, err := hc.buildRouter()
	if err != nil {
		return err
	}
	hc.router = router

	ln, err := net.Listen("tcp", hc.cfg.Address)
	if err != nil {
		return fmt.Errorf("http_server listen %s: %w", hc.cfg.Address, err)
	}
	hc.listener = ln
	hc.server = &http.Server{
		ReadTimeout:  hc.cfg.ReadTimeout,
		WriteTimeout: hc.cfg.WriteTimeout,
		IdleTimeout:  hc.cfg.IdleTimeout,
		Handler:      hc.router,
	}

	go func() {
		logging.Infof(ctx, "http_server listening on %s", ln.Addr())
		if err := hc.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf(ctx, "http_server server error: %v", err)
		}
	}()

	hc.started = true
	return nil
}

func (hc *HTTPServerComponent) Stop(ctx context.Context) error {
	defer hc.BaseComponent.Stop(ctx)
	if !hc.started || hc.server == nil {
		return nil
	}
	hc.started = false
	stopCtx, cancel := context.WithTimeout(ctx, hc.cfg.GracefulTimeout)
	defer cancel()
	if err := hc.server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("http_server graceful shutdown failed: %w", err)
	}
	logging.Infof(ctx, "http_server server stopped")
	return nil
}

func (hc *HTTPServerComponent) HealthCheck() error {
	if err := hc.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	if !hc.started {
		return fmt.Errorf("http_server server not started")
	}
	return nil
}

func (hc *HTTPServerComponent) buildRouter() (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(hc.cfg.RequestTimeout))

	serviceName := hc.cfg.ServiceName
	if serviceName == "" {
		serviceName = hc.cfg.Address
	}
	r.Use(otelchi.Middleware(serviceName))
	r.Use(accessLog)

	for _, mw := range hc.providedMiddleware() {
		r.Use(mw)
	}

	if hc.cfg.EnableHealth {
		r.Get("/healthz", hc.healthHandler)
	}
	if hc.cfg.MetricsPath != "" {
		if h := hc.metricsHandler(); h != nil {
			r.Handle(hc.cfg.MetricsPath, h)
		}
	}

	registrars := append(snapshot(), hc.extras...)
	for _, fn := range registrars {
		if err := fn(r, hc.container); err != nil {
			return nil, fmt.Errorf("route register failed: %w", err)
		}
	}
	return r, nil
}

// providedMiddleware collects middleware from started components, in
// component name order.
func (hc *HTTPServerComponent) providedMiddleware() []func(http.Handler) http.Handler {
	if hc.container == nil {
		return nil
	}
	var out []func(http.Handler) http.Handler
	for _, name := range hc.container.Names() {
		if name == hc.Name() {
			continue
		}
		comp, err := hc.container.Resolve(name)
		if err != nil || !comp.IsActive() {
			continue
		}
		if p, ok := comp.(MiddlewareProvider); ok {
			out = append(out, p.Middleware())
		}
	}
	return out
}

func (hc *HTTPServerComponent) metricsHandler() http.Handler {
	if hc.container == nil {
		return nil
	}
	comp, err := hc.container.Resolve(consts.COMPONENT_PROMETHEUS)
	if err != nil || !comp.IsActive() {
		return nil
	}
	if h, ok := comp.(interface{ Handler() http.Handler }); ok {
		return h.Handler()
	}
	return nil
}

// healthHandler reports every registered component; any failure turns the
// response into a 503.
func (hc *HTTPServerComponent) healthHandler(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	report := map[string]string{}
	if hc.container != nil {
		for _, name := range hc.container.Names() {
			comp, err := hc.container.Resolve(name)
			if err != nil {
				continue
			}
			if name == hc.Name() {
				report[name] = "ok"
				continue
			}
			if err := comp.HealthCheck(); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}

// accessLog writes one line per request with status and trace metadata and
// echoes a W3C traceparent header when a span is present.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		sc := trace.SpanContextFromContext(r.Context())
		if sc.IsValid() {
			w.Header().Set("traceparent", fmt.Sprintf("00-%s-%s-01", sc.TraceID().String(), sc.SpanID().String()))
		}

		next.ServeHTTP(sw, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int("status", sw.status),
			zap.Duration("dur", time.Since(start)),
		}
		if sc.IsValid() {
			fields = append(fields, zap.String("span_id", sc.SpanID().String()))
		}
		logging.Info(r.Context(), "http_access", fields...)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (hc *HTTPServerComponent) applyDefaults() {
	if hc.cfg.Address == "" {
		hc.cfg.Address = ":8080"
	}
	if hc.cfg.ReadTimeout == 0 {
		hc.cfg.ReadTimeout = 15 * time.Second
	}
	if hc.cfg.WriteTimeout == 0 {
		hc.cfg.WriteTimeout = 15 * time.Second
	}
	if hc.cfg.IdleTimeout == 0 {
		hc.cfg.IdleTimeout = 60 * time.Second
	}
	if hc.cfg.GracefulTimeout == 0 {
		hc.cfg.GracefulTimeout = 10 * time.Second
	}
	if hc.cfg.RequestTimeout == 0 {
		hc.cfg.RequestTimeout = 60 * time.Second
	}
}
