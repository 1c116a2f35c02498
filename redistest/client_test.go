package redistest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"
)

func TestClientReplaysInOrder(t *testing.T) {
	c := NewClient()
	boom := errors.New("boom")
	c.Prepare(BulkString("first"), Integer(2), Failure(boom), Success(nil))
	ctx := context.Background()

	v, err := redis.SendAs[string](ctx, c, "GET", "a")
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	n, err := redis.SendAs[int64](ctx, c, "INCR", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = c.Send(ctx, "GET", "c")
	assert.ErrorIs(t, err, boom)

	nilReply, err := c.Send(ctx, "GET", "d")
	require.NoError(t, err)
	assert.Nil(t, nilReply)

	assert.Equal(t, []string{"GET", "INCR", "GET", "GET"}, c.Commands())
	assert.Equal(t, 0, c.Pending())
}

func TestClientExhaustion(t *testing.T) {
	const n = 3
	c := NewClient()
	for i := 0; i < n; i++ {
		c.Prepare(Integer(int64(i)))
	}
	ctx := context.Background()
	for i := 0; i < n; i++ {
		got, err := redis.SendAs[int64](ctx, c, "INCR", "k")
		require.NoError(t, err)
		assert.Equal(t, int64(i), got)
	}

	_, err := c.Send(ctx, "INCR", "k")
	assert.ErrorIs(t, err, ErrNoScriptedResponse)
	assert.ErrorIs(t, c.Subscribe(ctx, []string{"ch"}, nil, nil, nil), ErrNoScriptedResponse)
	_, err = c.Publish(ctx, "ch", "m")
	assert.ErrorIs(t, err, ErrNoScriptedResponse)
	assert.ErrorIs(t, c.Unsubscribe(ctx), ErrNoScriptedResponse)
}

func TestClientTypeMismatch(t *testing.T) {
	c := NewClient()
	c.Prepare(BulkString("not a number"), BulkString("also not"))
	ctx := context.Background()

	_, err := redis.SendAs[int64](ctx, c, "GET", "k")
	assert.ErrorIs(t, err, redis.ErrTypeMismatch)

	_, err = c.Publish(ctx, "ch", "m")
	assert.ErrorIs(t, err, redis.ErrTypeMismatch)
}

func TestClientNumericBulkString(t *testing.T) {
	c := NewClient()
	c.Prepare(BulkString("42"), BulkString("7"))
	ctx := context.Background()

	n, err := redis.SendAs[int64](ctx, c, "GET", "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	i, err := redis.SendAs[int](ctx, c, "GET", "counter")
	require.NoError(t, err)
	assert.Equal(t, 7, i)
}

func TestClientPubSub(t *testing.T) {
	c := NewClient()
	c.Prepare(
		Success(nil), // subscribe ack
		Integer(1),   // publish listeners
		Success(nil), // unsubscribe ack
	)
	ctx := context.Background()

	var messages []string
	var subscribed, unsubscribed []int
	err := c.Subscribe(ctx, []string{"news", "alerts"},
		func(channel, payload string) { messages = append(messages, channel+"="+payload) },
		func(_ string, count int) { subscribed = append(subscribed, count) },
		func(_ string, count int) { unsubscribed = append(unsubscribed, count) },
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, subscribed)
	assert.Empty(t, messages, "subscribe delivers nothing by itself")
	assert.Equal(t, []string{"alerts", "news"}, c.Subscribed())

	listeners, err := c.Publish(ctx, "news", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), listeners)

	assert.True(t, c.Deliver("news", "hello"))
	assert.False(t, c.Deliver("sports", "ignored"))
	assert.Equal(t, []string{"news=hello"}, messages)

	require.NoError(t, c.Unsubscribe(ctx, "news"))
	assert.Equal(t, []int{1}, unsubscribed)
	assert.Equal(t, []string{"alerts"}, c.Subscribed())
	assert.Equal(t, []string{"SUBSCRIBE", "PUBLISH", "UNSUBSCRIBE"}, c.Commands())
}

func TestClientUnsubscribeAll(t *testing.T) {
	c := NewClient()
	c.Prepare(Success(nil), Success(nil))
	ctx := context.Background()

	var acks []string
	require.NoError(t, c.Subscribe(ctx, []string{"b", "a"}, nil, nil, func(ch string, _ int) { acks = append(acks, ch) }))
	require.NoError(t, c.Unsubscribe(ctx))
	assert.Equal(t, []string{"a", "b"}, acks)
	assert.Empty(t, c.Subscribed())
}

func TestClientFailedSubscribeRegistersNothing(t *testing.T) {
	c := NewClient()
	denied := errors.New("NOPERM")
	c.Prepare(Failure(denied))

	called := false
	err := c.Subscribe(context.Background(), []string{"ch"}, nil, func(string, int) { called = true }, nil)
	assert.ErrorIs(t, err, denied)
	assert.False(t, called)
	assert.Empty(t, c.Subscribed())
}

func TestClientConcurrentPrepareAndSend(t *testing.T) {
	c := NewClient()
	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Prepare(Success("ok"))
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Send(context.Background(), "PING")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, c.Pending())
}

func TestClientClose(t *testing.T) {
	c := NewClient()
	c.Prepare(Success("unused"))
	require.NoError(t, c.Close())
	_, err := c.Send(context.Background(), "PING")
	assert.ErrorIs(t, err, redis.ErrClientClosed)
	assert.Equal(t, 1, c.Pending())
}

func TestStub(t *testing.T) {
	c := NewClient()
	c.Prepare(BulkString("v1"))
	f := Stub(c)

	_, err := f.Configuration()
	assert.ErrorIs(t, err, redis.ErrStubConfiguration)

	client, err := f.MakeClient(context.Background(), nil)
	require.NoError(t, err)
	// closing the adapter leaves the shared scripted client usable
	require.NoError(t, client.Close())

	v, err := redis.SendAs[string](context.Background(), client, "INFO")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestNewMiniredis(t *testing.T) {
	mr, cfg := NewMiniredis(t, redis.WithDatabase(1))
	require.NotNil(t, mr)
	assert.Equal(t, 1, cfg.DatabaseIndex())
	assert.Equal(t, []string{mr.Addr()}, cfg.AddrStrings())
}
