// Package redistest provides a scripted in-memory redis client and helpers
// for tests that exercise code written against redis.Client.
package redistest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"
)

// ErrNoScriptedResponse is returned when a command is issued with an empty
// response queue.
var ErrNoScriptedResponse = errors.New("redistest: no scripted response available")

// Response is one prepared reply: a value or an error.
type Response struct {
	Value any
	Err   error
}

func Success(v any) Response { return Response{Value: v} }

// Failure queues err. A nil err is a success with a nil value.
func Failure(err error) Response { return Response{Err: err} }

// BulkString is a success carrying a bulk string reply.
func BulkString(s string) Response { return Success([]byte(s)) }

// Integer is a success carrying an integer reply.
func Integer(n int64) Response { return Success(n) }

type handlers struct {
	onMessage     redis.MessageHandler
	onSubscribe   redis.SubscriptionHandler
	onUnsubscribe redis.SubscriptionHandler
}

// Client replays prepared responses in FIFO order. Every Send, Subscribe,
// Publish and Unsubscribe consumes exactly one response.
type Client struct {
	mu     sync.Mutex
	queue  []Response
	subs   map[string]handlers
	sent   []string
	closed bool
}

var _ redis.Client = (*Client)(nil)

func NewClient() *Client {
	return &Client{subs: make(map[string]handlers)}
}

// Prepare appends responses to the queue.
func (c *Client) Prepare(responses ...Response) {
	c.mu.Lock()
	c.queue = append(c.queue, responses...)
	c.mu.Unlock()
}

// Pending reports how many prepared responses are left.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Commands returns the command names consumed so far, in order.
func (c *Client) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// next pops the head of the queue. Callers hold c.mu.
func (c *Client) next(command string) (Response, error) {
	if c.closed {
		return Response{}, redis.ErrClientClosed
	}
	if len(c.queue) == 0 {
		return Response{}, fmt.Errorf("%w for %s", ErrNoScriptedResponse, command)
	}
	r := c.queue[0]
	c.queue[0] = Response{}
	c.queue = c.queue[1:]
	c.sent = append(c.sent, command)
	return r, nil
}

func (c *Client) Send(_ context.Context, command string, _ ...any) (any, error) {
	c.mu.Lock()
	r, err := c.next(command)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Value, r.Err
}

// Subscribe consumes the acknowledgment and registers the handlers. It never
// delivers messages; use Deliver.
func (c *Client) Subscribe(_ context.Context, channels []string, onMessage redis.MessageHandler, onSubscribe, onUnsubscribe redis.SubscriptionHandler) error {
	c.mu.Lock()
	r, err := c.next("SUBSCRIBE")
	if err == nil {
		err = r.Err
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}
	counts := make([]int, len(channels))
	for i, ch := range channels {
		c.subs[ch] = handlers{onMessage: onMessage, onSubscribe: onSubscribe, onUnsubscribe: onUnsubscribe}
		counts[i] = len(c.subs)
	}
	c.mu.Unlock()

	if onSubscribe != nil {
		for i, ch := range channels {
			onSubscribe(ch, counts[i])
		}
	}
	return nil
}

// Publish consumes the acknowledgment, which must be a listener count.
func (c *Client) Publish(_ context.Context, _ string, _ any) (int64, error) {
	c.mu.Lock()
	r, err := c.next("PUBLISH")
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if r.Err != nil {
		return 0, r.Err
	}
	return redis.Convert[int64](r.Value)
}

// Unsubscribe consumes the acknowledgment and runs the unsubscribe handlers.
// No channels means every subscribed channel.
func (c *Client) Unsubscribe(_ context.Context, channels ...string) error {
	c.mu.Lock()
	r, err := c.next("UNSUBSCRIBE")
	if err == nil {
		err = r.Err
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if len(channels) == 0 {
		for ch := range c.subs {
			channels = append(channels, ch)
		}
		sort.Strings(channels)
	}
	type ack struct {
		channel string
		count   int
		fn      redis.SubscriptionHandler
	}
	acks := make([]ack, 0, len(channels))
	for _, ch := range channels {
		h, ok := c.subs[ch]
		if !ok {
			continue
		}
		delete(c.subs, ch)
		acks = append(acks, ack{channel: ch, count: len(c.subs), fn: h.onUnsubscribe})
	}
	c.mu.Unlock()

	for _, a := range acks {
		if a.fn != nil {
			a.fn(a.channel, a.count)
		}
	}
	return nil
}

// Deliver hands payload to the message handler registered for channel and
// reports whether one was registered.
func (c *Client) Deliver(channel, payload string) bool {
	c.mu.Lock()
	h, ok := c.subs[channel]
	c.mu.Unlock()
	if !ok || h.onMessage == nil {
		return false
	}
	h.onMessage(channel, payload)
	return true
}

// Subscribed returns the channels with registered handlers.
func (c *Client) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Close makes further commands fail with redis.ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
