package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleOptionsActivePool(t *testing.T) {
	cfg, err := FromHost("cache.local", 6379, WithDatabase(2), WithPassword("pw"), WithUsername("app"))
	require.NoError(t, err)

	opts := cfg.simpleOptions(nil)
	assert.Equal(t, "cache.local:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, "app", opts.Username)
	assert.Equal(t, 2, opts.PoolSize)
	assert.Equal(t, 2, opts.MaxActiveConns)
	assert.Equal(t, 0, opts.MaxIdleConns)
	assert.Equal(t, 0, opts.MinIdleConns)
	assert.Equal(t, 100*time.Millisecond, opts.MinRetryBackoff)
	assert.Equal(t, 800*time.Millisecond, opts.MaxRetryBackoff)
	assert.Equal(t, time.Duration(0), opts.PoolTimeout)
	assert.Nil(t, opts.TLSConfig)
	assert.Nil(t, opts.Dialer)
}

func TestSimpleOptionsPreservedPool(t *testing.T) {
	retry := 3 * time.Second
	pool := PoolOptions{
		MaximumConnectionCount: MaximumPreservedConnections(8),
		MinimumConnectionCount: 2,
		BackoffFactor:          1.5,
		InitialBackoffDelay:    10 * time.Millisecond,
		RetryTimeout:           &retry,
	}
	cfg, err := FromHost("cache.local", 6379, WithPool(pool))
	require.NoError(t, err)

	opts := cfg.simpleOptions(nil)
	assert.Equal(t, 8, opts.PoolSize)
	assert.Equal(t, 8, opts.MaxIdleConns)
	assert.Equal(t, 0, opts.MaxActiveConns)
	assert.Equal(t, 2, opts.MinIdleConns)
	assert.Equal(t, retry, opts.PoolTimeout)
	assert.Equal(t, 10*time.Millisecond, opts.MinRetryBackoff)
}

func TestMaxRetryBackoffCapped(t *testing.T) {
	p := DefaultPoolOptions()
	p.InitialBackoffDelay = 30 * time.Second
	p.BackoffFactor = 10
	assert.Equal(t, time.Minute, p.maxRetryBackoff())

	p.BackoffFactor = 0.5
	assert.Equal(t, 30*time.Second, p.maxRetryBackoff())

	p.InitialBackoffDelay = 0
	assert.Equal(t, time.Duration(0), p.maxRetryBackoff())
}

func TestSimpleOptionsMultipleAddressesUseFailoverDialer(t *testing.T) {
	cfg, err := FromAddresses([]Address{{Host: "a", Port: 1}, {Host: "b", Port: 2}})
	require.NoError(t, err)
	opts := cfg.simpleOptions(nil)
	assert.Equal(t, "a:1", opts.Addr)
	assert.NotNil(t, opts.Dialer)
}

func TestFailoverDialerWalksAddresses(t *testing.T) {
	cfg, err := FromAddresses([]Address{{Host: "down", Port: 1}, {Host: "up", Port: 2}})
	require.NoError(t, err)

	var mu sync.Mutex
	var tried []string
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		mu.Lock()
		tried = append(tried, addr)
		mu.Unlock()
		if addr == "down:1" {
			return nil, errors.New("connection refused")
		}
		client, server := net.Pipe()
		t.Cleanup(func() { _ = server.Close() })
		return client, nil
	}

	conn, err := cfg.failoverDialer(dial)(context.Background(), "tcp", "ignored:0")
	require.NoError(t, err)
	require.NotNil(t, conn)
	_ = conn.Close()
	assert.Equal(t, []string{"down:1", "up:2"}, tried)
}

func TestFailoverDialerJoinsErrors(t *testing.T) {
	cfg, err := FromAddresses([]Address{{Host: "a", Port: 1}, {Host: "b", Port: 2}})
	require.NoError(t, err)
	refused := errors.New("refused")
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) { return nil, refused }

	_, err = cfg.failoverDialer(dial)(context.Background(), "tcp", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, refused)
	assert.Contains(t, err.Error(), "a:1")
	assert.Contains(t, err.Error(), "b:2")
}

func TestUniversalOptionsSentinel(t *testing.T) {
	cfg, err := FromAddresses(
		[]Address{{Host: "s1", Port: 26379}, {Host: "s2", Port: 26379}},
		WithMode(ModeSentinel), WithMasterName("primary"), WithDatabase(1),
		WithTLS(&tls.Config{ServerName: "redis.internal"}),
	)
	require.NoError(t, err)
	opts := cfg.universalOptions(nil)
	assert.Equal(t, []string{"s1:26379", "s2:26379"}, opts.Addrs)
	assert.Equal(t, "primary", opts.MasterName)
	assert.Equal(t, 1, opts.DB)
	assert.Equal(t, 2, opts.MaxActiveConns)
	require.NotNil(t, opts.TLSConfig)
	assert.Nil(t, opts.Dialer)
}

func TestNewUniversalClientModes(t *testing.T) {
	single, err := FromHost("127.0.0.1", 6379)
	require.NoError(t, err)
	c, err := single.newUniversalClient(nil)
	require.NoError(t, err)
	_, ok := c.(*goredis.Client)
	assert.True(t, ok)
	require.NoError(t, c.Close())

	cluster, err := FromAddresses([]Address{{Host: "127.0.0.1", Port: 7000}}, WithMode(ModeCluster))
	require.NoError(t, err)
	c, err = cluster.newUniversalClient(nil)
	require.NoError(t, err)
	_, ok = c.(*goredis.ClusterClient)
	assert.True(t, ok)
	require.NoError(t, c.Close())

	bad := *single
	bad.Mode = "ring"
	_, err = bad.newUniversalClient(nil)
	assert.ErrorIs(t, err, ErrInvalidMode)
}
