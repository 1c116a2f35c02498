package redistest

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"
)

// stubClient shares one scripted client between every identifier it is
// installed under. Closing it leaves the scripted client usable.
type stubClient struct {
	*Client
}

func (stubClient) Close() error { return nil }

type stubFactory struct {
	client *Client
}

// Stub returns a factory whose clients all read from c.
func Stub(c *Client) redis.Factory {
	return &stubFactory{client: c}
}

func (f *stubFactory) MakeClient(_ context.Context, _ logging.Logger) (redis.Client, error) {
	return stubClient{Client: f.client}, nil
}

func (f *stubFactory) Configuration() (*redis.Configuration, error) {
	return nil, redis.ErrStubConfiguration
}

// NewMiniredis starts an in-process server for the duration of the test and
// returns it with a configuration pointing at it.
func NewMiniredis(t testing.TB, opts ...redis.Option) (*miniredis.Miniredis, *redis.Configuration) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg, err := redis.FromHost(mr.Host(), port, opts...)
	require.NoError(t, err)
	return mr, cfg
}
