package redis

import (
	"context"
	"fmt"
	"strconv"
)

// MessageHandler receives a published payload for a subscribed channel.
type MessageHandler func(channel, payload string)

// SubscriptionHandler receives a subscribe or unsubscribe acknowledgment with
// the number of channels the connection is subscribed to afterwards.
type SubscriptionHandler func(channel string, count int)

// Client is the command and pub/sub surface shared by pooled and scripted
// clients. Handlers depend on this, never on a concrete client.
type Client interface {
	Send(ctx context.Context, command string, args ...any) (any, error)
	Subscribe(ctx context.Context, channels []string, onMessage MessageHandler, onSubscribe, onUnsubscribe SubscriptionHandler) error
	Publish(ctx context.Context, channel string, message any) (int64, error)
	Unsubscribe(ctx context.Context, channels ...string) error
	Close() error
}

// Pinger is implemented by clients with a live connection to check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SendAs sends command and converts the reply to T.
func SendAs[T any](ctx context.Context, c Client, command string, args ...any) (T, error) {
	var zero T
	v, err := c.Send(ctx, command, args...)
	if err != nil {
		return zero, err
	}
	return Convert[T](v)
}

// Convert casts a reply value to T. Bulk strings convert between string and
// []byte, integers between widths, and numeric bulk strings to integers.
func Convert[T any](v any) (T, error) {
	var zero T
	if t, ok := v.(T); ok {
		return t, nil
	}
	var out any
	switch any(zero).(type) {
	case string:
		switch x := v.(type) {
		case []byte:
			out = string(x)
		case int64:
			out = strconv.FormatInt(x, 10)
		}
	case []byte:
		if s, ok := v.(string); ok {
			out = []byte(s)
		}
	case int64:
		if n, ok := toInt64(v); ok {
			out = n
		}
	case int:
		if n, ok := toInt64(v); ok {
			out = int(n)
		}
	case bool:
		if n, ok := toInt64(v); ok {
			out = n != 0
		}
	}
	if t, ok := out.(T); ok {
		return t, nil
	}
	return zero, fmt.Errorf("%w: got %T, want %T", ErrTypeMismatch, v, zero)
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}
