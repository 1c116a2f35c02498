package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

// Component owns a private registry and optionally serves it over HTTP.
type Component struct {
	*core.BaseComponent
	cfg      *Config
	server   *http.Server
	registry *prometheus.Registry
}

func NewComponent(cfg *Config) *Component {
	return &Component{
		BaseComponent: core.NewBaseComponent(consts.COMPONENT_PROMETHEUS, consts.COMPONENT_LOGGING),
		cfg:           cfg,
		registry:      prometheus.NewRegistry(),
	}
}

func (c *Component) Start(ctx context.Context) error {
	if err := c.BaseComponent.Start(ctx); err != nil {
		return err
	}
	if *c.cfg.CollectGoMetrics {
		_ = c.registry.Register(collectors.NewGoCollector())
	}
	if *c.cfg.CollectProcess {
		_ = c.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	if c.cfg.Address != "" {
		mux := http.NewServeMux()
		mux.Handle(c.cfg.Path, c.Handler())
		c.server = &http.Server{
			Addr:              c.cfg.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logging.Infof(ctx, "prometheus metrics listening on %s%s", c.cfg.Address, c.cfg.Path)
			if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Errorf(ctx, "prometheus server error: %v", err)
			}
		}()
	}

	registerGlobal(c)
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	defer c.BaseComponent.Stop(ctx)
	registerGlobal(nil)
	if c.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("prometheus server shutdown: %w", err)
	}
	logging.Info(ctx, "prometheus component stopped")
	return nil
}

// Handler serves the component registry in the exposition format.
func (c *Component) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Component) Registry() *prometheus.Registry { return c.registry }

// FQName prefixes name with the configured namespace and subsystem.
func (c *Component) FQName(name string) string {
	return prometheus.BuildFQName(c.cfg.Namespace, c.cfg.Subsystem, name)
}

// Register adds collector, returning the already registered collector when an
// identical one exists.
func (c *Component) Register(collector prometheus.Collector) (prometheus.Collector, error) {
	if err := c.registry.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return collector, nil
}

func (c *Component) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: c.FQName(name),
		Help: help,
	}, labels)
	if existing, err := c.Register(cv); err == nil {
		if prev, ok := existing.(*prometheus.CounterVec); ok {
			return prev
		}
	}
	return cv
}

func (c *Component) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    c.FQName(name),
		Help:    help,
		Buckets: buckets,
	}, labels)
	if existing, err := c.Register(hv); err == nil {
		if prev, ok := existing.(*prometheus.HistogramVec); ok {
			return prev
		}
	}
	return hv
}
