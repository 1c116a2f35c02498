package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// defaultMaxRetries matches the go-redis default; it also bounds the backoff
// growth computed from the pool options.
const defaultMaxRetries = 3

// DialFunc opens the transport connection for one endpoint.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// maxRetryBackoff grows the initial delay by factor for every retry.
func (p PoolOptions) maxRetryBackoff() time.Duration {
	if p.InitialBackoffDelay <= 0 {
		return 0
	}
	grown := float64(p.InitialBackoffDelay) * math.Pow(p.BackoffFactor, defaultMaxRetries)
	if grown > float64(time.Minute) {
		return time.Minute
	}
	if d := time.Duration(grown); d > p.InitialBackoffDelay {
		return d
	}
	return p.InitialBackoffDelay
}

// poolFields are the sizing values shared by every go-redis option type.
type poolFields struct {
	poolSize       int
	maxIdleConns   int
	maxActiveConns int
	minIdleConns   int
	poolTimeout    time.Duration
	minBackoff     time.Duration
	maxBackoff     time.Duration
}

func (p PoolOptions) fields() poolFields {
	f := poolFields{
		poolSize:     p.MaximumConnectionCount.Limit,
		minIdleConns: p.MinimumConnectionCount,
		minBackoff:   p.InitialBackoffDelay,
		maxBackoff:   p.maxRetryBackoff(),
	}
	if p.MaximumConnectionCount.Preserved {
		f.maxIdleConns = p.MaximumConnectionCount.Limit
	} else {
		f.maxActiveConns = p.MaximumConnectionCount.Limit
	}
	if p.RetryTimeout != nil {
		f.poolTimeout = *p.RetryTimeout
	}
	return f
}

// simpleOptions maps a single-mode configuration onto a go-redis client.
// With more than one address, or a custom dialer, dialing goes through
// failoverDialer which walks the endpoints in order.
func (c *Configuration) simpleOptions(dial DialFunc) *goredis.Options {
	f := c.Pool.fields()
	opts := &goredis.Options{
		Addr:            c.Addresses[0].String(),
		ClientName:      c.ClientName,
		Username:        c.Username,
		Password:        c.Password,
		DB:              c.DatabaseIndex(),
		MaxRetries:      defaultMaxRetries,
		MinRetryBackoff: f.minBackoff,
		MaxRetryBackoff: f.maxBackoff,
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		PoolSize:        f.poolSize,
		PoolTimeout:     f.poolTimeout,
		MinIdleConns:    f.minIdleConns,
		MaxIdleConns:    f.maxIdleConns,
		MaxActiveConns:  f.maxActiveConns,
		TLSConfig:       c.TLS,
	}
	if len(c.Addresses) > 1 || dial != nil {
		opts.Dialer = c.failoverDialer(dial)
	}
	return opts
}

// universalOptions is used for cluster and sentinel deployments.
func (c *Configuration) universalOptions(dial DialFunc) *goredis.UniversalOptions {
	f := c.Pool.fields()
	opts := &goredis.UniversalOptions{
		Addrs:           c.AddrStrings(),
		ClientName:      c.ClientName,
		Username:        c.Username,
		Password:        c.Password,
		DB:              c.DatabaseIndex(),
		MasterName:      c.MasterName,
		MaxRetries:      defaultMaxRetries,
		MinRetryBackoff: f.minBackoff,
		MaxRetryBackoff: f.maxBackoff,
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		PoolSize:        f.poolSize,
		PoolTimeout:     f.poolTimeout,
		MinIdleConns:    f.minIdleConns,
		MaxIdleConns:    f.maxIdleConns,
		MaxActiveConns:  f.maxActiveConns,
		TLSConfig:       c.TLS,
	}
	if dial != nil {
		opts.Dialer = c.tlsDialer(dial)
	}
	return opts
}

// newUniversalClient builds the go-redis client for the configured mode.
// None of the constructors dial; connections are opened on first use.
func (c *Configuration) newUniversalClient(dial DialFunc) (goredis.UniversalClient, error) {
	switch c.Mode {
	case ModeSingle, "":
		return goredis.NewClient(c.simpleOptions(dial)), nil
	case ModeCluster:
		return goredis.NewClusterClient(c.universalOptions(dial).Cluster()), nil
	case ModeSentinel:
		return goredis.NewFailoverClient(c.universalOptions(dial).Failover()), nil
	}
	return nil, invalid(ErrInvalidMode, c.Mode, nil)
}

// failoverDialer tries each configured endpoint in order, regardless of the
// address go-redis asks for, and returns the first connection that opens.
func (c *Configuration) failoverDialer(dial DialFunc) func(ctx context.Context, network, addr string) (net.Conn, error) {
	tlsDial := c.tlsDialer(dial)
	addrs := c.AddrStrings()
	return func(ctx context.Context, network, _ string) (net.Conn, error) {
		var errs []error
		for _, addr := range addrs {
			conn, err := tlsDial(ctx, network, addr)
			if err == nil {
				return conn, nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			if ctx.Err() != nil {
				break
			}
		}
		return nil, errors.Join(errs...)
	}
}

// tlsDialer wraps dial with the TLS handshake. go-redis only applies
// TLSConfig in its own dialer, so a custom one has to do it.
func (c *Configuration) tlsDialer(dial DialFunc) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if dial == nil {
		d := &net.Dialer{Timeout: c.DialTimeout, KeepAlive: 5 * time.Minute}
		if d.Timeout == 0 {
			d.Timeout = 5 * time.Second
		}
		dial = d.DialContext
	}
	if c.TLS == nil {
		return dial
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		raw, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		cfg := c.TLS
		if cfg.ServerName == "" {
			cfg = cfg.Clone()
			if host, _, splitErr := net.SplitHostPort(addr); splitErr == nil {
				cfg.ServerName = host
			}
		}
		conn := tls.Client(raw, cfg)
		if err := conn.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return nil, err
		}
		return conn, nil
	}
}
