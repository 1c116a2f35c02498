package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

// ID names one logical Redis target inside an application.
type ID string

// DefaultID is used when no identifier is given.
const DefaultID ID = "default"

type entry struct {
	factory Factory
	client  Client
}

// Registry maps identifiers to factories and the clients built from them.
// Configure and Use belong to setup; after Start the set of entries is fixed
// and Client is safe for concurrent use.
type Registry struct {
	*core.BaseComponent
	verifyOnBoot bool

	mu        sync.RWMutex
	entries   map[ID]*entry
	defaultID ID
	sealed    bool
	stopped   bool

	group   singleflight.Group
	metrics *registryMetrics
}

func NewRegistry() *Registry {
	return &Registry{
		BaseComponent: core.NewBaseComponent(
			consts.COMPONENT_REDIS,
			consts.COMPONENT_LOGGING,
			core.Optional(consts.COMPONENT_PROMETHEUS),
			core.Optional(consts.COMPONENT_TELEMETRY),
		),
		entries:   make(map[ID]*entry),
		defaultID: DefaultID,
	}
}

// SetVerifyOnBoot makes Start ping every pooled client and fail on error.
func (r *Registry) SetVerifyOnBoot(v bool) { r.verifyOnBoot = v }

// Configure installs a pooled factory for id. A later call for the same id
// replaces the earlier one.
func (r *Registry) Configure(id ID, cfg *Configuration) error {
	if cfg == nil {
		return fmt.Errorf("redis: nil configuration for %q", id)
	}
	return r.Use(id, NewPooledFactory(cfg))
}

// Use installs an arbitrary factory for id, replacing any previous one.
// An empty id targets the current default entry. A client already built for
// the replaced entry is closed.
func (r *Registry) Use(id ID, f Factory) error {
	if f == nil {
		return fmt.Errorf("redis: nil factory for %q", id)
	}
	r.mu.Lock()
	if id == "" {
		id = r.defaultID
	}
	if r.sealed {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRegistrySealed, id)
	}
	var replaced Client
	if prev, ok := r.entries[id]; ok {
		replaced = prev.client
	}
	r.entries[id] = &entry{factory: f}
	r.mu.Unlock()

	if replaced != nil {
		if err := replaced.Close(); err != nil {
			logging.Warn(context.Background(), "redis: closing replaced client failed",
				zap.String(consts.KEY_RedisID, string(id)), zap.Error(err))
		}
	}
	return nil
}

// SetDefault routes DefaultID lookups to id.
func (r *Registry) SetDefault(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	if id == "" {
		id = DefaultID
	}
	r.defaultID = id
	return nil
}

// IDs returns the installed identifiers in sorted order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// lookupLocked resolves id to an installed entry. Empty and DefaultID map to
// the default entry; unknown identifiers fall back to it when it exists.
func (r *Registry) lookupLocked(id ID) (ID, *entry, error) {
	if id == "" || id == DefaultID {
		id = r.defaultID
	}
	if e, ok := r.entries[id]; ok {
		return id, e, nil
	}
	if e, ok := r.entries[r.defaultID]; ok {
		return r.defaultID, e, nil
	}
	return "", nil, fmt.Errorf("%w: %q", ErrUnknownID, id)
}

// Configuration returns the configuration behind id.
func (r *Registry) Configuration(id ID) (*Configuration, error) {
	r.mu.RLock()
	_, e, err := r.lookupLocked(id)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return e.factory.Configuration()
}

// Client returns the client for id, building it on first use. Concurrent
// first calls share one construction.
func (r *Registry) Client(ctx context.Context, id ID) (Client, error) {
	r.mu.RLock()
	if r.stopped {
		r.mu.RUnlock()
		return nil, ErrClientClosed
	}
	key, e, err := r.lookupLocked(id)
	var c Client
	if e != nil {
		c = e.client
	}
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}
	return r.ensure(ctx, key, e)
}

// ensure builds the client of e once; callers racing on the same key wait
// for the first construction and share its result.
func (r *Registry) ensure(ctx context.Context, key ID, e *entry) (Client, error) {
	v, err, _ := r.group.Do(string(key), func() (interface{}, error) {
		return r.build(ctx, key, e)
	})
	if err != nil {
		return nil, err
	}
	return v.(Client), nil
}

// MustClient is Client for setup code where a missing identifier is a bug.
func (r *Registry) MustClient(ctx context.Context, id ID) Client {
	c, err := r.Client(ctx, id)
	if err != nil {
		panic(err)
	}
	return c
}

func (r *Registry) build(ctx context.Context, key ID, e *entry) (Client, error) {
	r.mu.RLock()
	existing := e.client
	r.mu.RUnlock()
	if existing != nil {
		return existing, nil
	}

	logger := logging.L().With(zap.String(consts.KEY_RedisID, string(key)))
	c, err := e.factory.MakeClient(ctx, logger)
	if err != nil {
		r.metrics.failed(key)
		return nil, fmt.Errorf("redis: build client %q: %w", key, err)
	}
	if c == nil {
		r.metrics.failed(key)
		return nil, fmt.Errorf("redis: factory for %q returned no client", key)
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		_ = c.Close()
		return nil, ErrClientClosed
	}
	if r.entries[key] != e {
		r.mu.Unlock()
		_ = c.Close()
		return nil, fmt.Errorf("redis: %q was reconfigured while its client was being built", key)
	}
	e.client = c
	r.mu.Unlock()

	r.metrics.built(key, e.factory)
	logger.Debug(ctx, "redis client built")
	return c, nil
}

// built returns the clients constructed so far, keyed by identifier.
func (r *Registry) built() map[ID]Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ID]Client, len(r.entries))
	for id, e := range r.entries {
		if e.client != nil {
			out[id] = e.client
		}
	}
	return out
}

// Start seals the registry and builds every client.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.BaseComponent.Start(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.sealed = true
	r.stopped = false
	entries := make(map[ID]*entry, len(r.entries))
	for id, e := range r.entries {
		entries[id] = e
	}
	r.mu.Unlock()

	r.metrics = newRegistryMetrics(r)

	ids := r.IDs()
	for _, id := range ids {
		c, err := r.ensure(ctx, id, entries[id])
		if err != nil {
			r.abortStart(ctx)
			return err
		}
		if !r.verifyOnBoot {
			continue
		}
		if p, ok := c.(Pinger); ok {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := p.Ping(pingCtx)
			cancel()
			if err != nil {
				r.abortStart(ctx)
				return fmt.Errorf("redis: ping %q: %w", id, err)
			}
		}
	}

	SetGlobal(r)
	logging.Info(ctx, "redis registry started", zap.Int("clients", len(ids)), zap.Bool("verified", r.verifyOnBoot))
	return nil
}

// abortStart undoes a failed Start so the lifecycle sees the registry as
// never started.
func (r *Registry) abortStart(ctx context.Context) {
	_ = r.closeAll(ctx, false)
	r.metrics.unregister()
	r.metrics = nil
	r.SetActive(false)
}

// Stop closes every client built by the registry.
func (r *Registry) Stop(ctx context.Context) error {
	defer r.BaseComponent.Stop(ctx)
	if Global() == r {
		SetGlobal(nil)
	}
	err := r.closeAll(ctx, true)
	r.metrics.unregister()
	logging.Info(ctx, "redis registry stopped")
	return err
}

// closeAll detaches every built client and closes it. With stop set the
// registry refuses Client before the first Close runs.
func (r *Registry) closeAll(ctx context.Context, stop bool) error {
	r.mu.Lock()
	if stop {
		r.stopped = true
	}
	clients := make(map[ID]Client)
	for id, e := range r.entries {
		if e.client != nil {
			clients[id] = e.client
			e.client = nil
		}
	}
	r.mu.Unlock()

	var errs []error
	for id, c := range clients {
		if err := c.Close(); err != nil {
			logging.Warn(ctx, "redis client close failed", zap.String(consts.KEY_RedisID, string(id)), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) HealthCheck() error {
	if err := r.BaseComponent.HealthCheck(); err != nil {
		return err
	}
	for id, c := range r.built() {
		p, ok := c.(Pinger)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis %q unhealthy: %w", id, err)
		}
	}
	return nil
}
