package redis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
)

// Factory produces the client behind one registry identifier.
type Factory interface {
	MakeClient(ctx context.Context, logger logging.Logger) (Client, error)
	// Configuration returns the resolved target. Factories without one return
	// ErrStubConfiguration (scripted stubs) or ErrNoConfiguration.
	Configuration() (*Configuration, error)
}

// FactoryFunc adapts a function to Factory. It has no configuration.
type FactoryFunc func(ctx context.Context, logger logging.Logger) (Client, error)

func (f FactoryFunc) MakeClient(ctx context.Context, logger logging.Logger) (Client, error) {
	return f(ctx, logger)
}

func (f FactoryFunc) Configuration() (*Configuration, error) {
	return nil, ErrNoConfiguration
}

// PooledFactory builds go-redis pools from a Configuration.
type PooledFactory struct {
	cfg  *Configuration
	dial DialFunc
}

type PooledFactoryOption func(*PooledFactory)

// WithDialer replaces the transport used to open pool connections.
func WithDialer(dial DialFunc) PooledFactoryOption {
	return func(f *PooledFactory) { f.dial = dial }
}

func NewPooledFactory(cfg *Configuration, opts ...PooledFactoryOption) *PooledFactory {
	f := &PooledFactory{cfg: cfg}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// MakeClient builds the pool without dialing; the first command opens the
// first connection.
func (f *PooledFactory) MakeClient(ctx context.Context, logger logging.Logger) (Client, error) {
	if f.cfg == nil {
		return nil, fmt.Errorf("redis: pooled factory has no configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	rdb, err := f.cfg.newUniversalClient(f.dial)
	if err != nil {
		return nil, err
	}
	rdb.AddHook(newTracingHook(f.cfg))
	logger.Debug(ctx, "redis pool created",
		zap.String("mode", f.cfg.Mode),
		zap.Strings("addrs", f.cfg.AddrStrings()),
		zap.Int("db", f.cfg.DatabaseIndex()),
		zap.Bool("tls", f.cfg.TLS != nil),
		zap.Stringer("pool", f.cfg.Pool.MaximumConnectionCount),
	)
	return newPooledClient(f.cfg, rdb, logger), nil
}

func (f *PooledFactory) Configuration() (*Configuration, error) {
	if f.cfg == nil {
		return nil, fmt.Errorf("redis: pooled factory has no configuration")
	}
	return f.cfg, nil
}
