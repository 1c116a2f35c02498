package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
)

type subscription struct {
	onMessage     MessageHandler
	onSubscribe   SubscriptionHandler
	onUnsubscribe SubscriptionHandler
}

// PooledClient is a Client over a go-redis connection pool. Pub/sub shares a
// single dedicated connection that is opened by the first Subscribe.
type PooledClient struct {
	cfg    *Configuration
	rdb    goredis.UniversalClient
	logger logging.Logger

	mu     sync.Mutex
	pubsub *goredis.PubSub
	subs   map[string]*subscription
	closed bool
	pumped sync.WaitGroup
}

func newPooledClient(cfg *Configuration, rdb goredis.UniversalClient, logger logging.Logger) *PooledClient {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PooledClient{
		cfg:    cfg,
		rdb:    rdb,
		logger: logger,
		subs:   make(map[string]*subscription),
	}
}

// Send runs an arbitrary command. A nil reply is returned as a nil value,
// not as an error.
func (c *PooledClient) Send(ctx context.Context, command string, args ...any) (any, error) {
	cmdArgs := make([]any, 0, len(args)+1)
	cmdArgs = append(cmdArgs, command)
	cmdArgs = append(cmdArgs, args...)
	v, err := c.rdb.Do(ctx, cmdArgs...).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	return v, err
}

func (c *PooledClient) Subscribe(ctx context.Context, channels []string, onMessage MessageHandler, onSubscribe, onUnsubscribe SubscriptionHandler) error {
	if len(channels) == 0 {
		return fmt.Errorf("redis: subscribe needs at least one channel")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}

	for _, ch := range channels {
		c.subs[ch] = &subscription{onMessage: onMessage, onSubscribe: onSubscribe, onUnsubscribe: onUnsubscribe}
	}
	if c.pubsub == nil {
		c.pubsub = c.rdb.Subscribe(ctx)
		c.pumped.Add(1)
		go c.pump(c.pubsub)
	}
	if err := c.pubsub.Subscribe(ctx, channels...); err != nil {
		for _, ch := range channels {
			delete(c.subs, ch)
		}
		return fmt.Errorf("redis: subscribe %v: %w", channels, err)
	}
	c.logger.Debug(ctx, "redis subscribed", zap.Strings("channels", channels))
	return nil
}

func (c *PooledClient) Publish(ctx context.Context, channel string, message any) (int64, error) {
	return c.rdb.Publish(ctx, channel, message).Result()
}

// Unsubscribe drops the given channels, or every channel when none are given.
// The unsubscribe callbacks run when the server acknowledges.
func (c *PooledClient) Unsubscribe(ctx context.Context, channels ...string) error {
	c.mu.Lock()
	ps := c.pubsub
	c.mu.Unlock()
	if ps == nil {
		return nil
	}
	if err := ps.Unsubscribe(ctx, channels...); err != nil {
		return fmt.Errorf("redis: unsubscribe %v: %w", channels, err)
	}
	return nil
}

// pump dispatches pub/sub traffic to the registered callbacks until the
// pubsub connection is closed.
func (c *PooledClient) pump(ps *goredis.PubSub) {
	defer c.pumped.Done()
	for raw := range ps.ChannelWithSubscriptions() {
		switch msg := raw.(type) {
		case *goredis.Message:
			if sub := c.lookup(msg.Channel); sub != nil && sub.onMessage != nil {
				sub.onMessage(msg.Channel, msg.Payload)
			}
		case *goredis.Subscription:
			sub := c.lookup(msg.Channel)
			if sub == nil {
				continue
			}
			switch msg.Kind {
			case "subscribe":
				if sub.onSubscribe != nil {
					sub.onSubscribe(msg.Channel, msg.Count)
				}
			case "unsubscribe":
				c.mu.Lock()
				delete(c.subs, msg.Channel)
				c.mu.Unlock()
				if sub.onUnsubscribe != nil {
					sub.onUnsubscribe(msg.Channel, msg.Count)
				}
			}
		}
	}
}

func (c *PooledClient) lookup(channel string) *subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[channel]
}

func (c *PooledClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PoolStats reports the go-redis pool counters.
func (c *PooledClient) PoolStats() *goredis.PoolStats {
	return c.rdb.PoolStats()
}

// Underlying exposes the go-redis client for typed commands.
func (c *PooledClient) Underlying() goredis.UniversalClient { return c.rdb }

func (c *PooledClient) Configuration() *Configuration { return c.cfg }

// Close releases the pub/sub connection and the pool. It is safe to call
// more than once.
func (c *PooledClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ps := c.pubsub
	c.pubsub = nil
	c.mu.Unlock()

	var errs []error
	if ps != nil {
		errs = append(errs, ps.Close())
		c.pumped.Wait()
	}
	errs = append(errs, c.rdb.Close())
	return errors.Join(errs...)
}
