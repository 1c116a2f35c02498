package redis

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort = 6379

	SchemeRedis  = "redis"
	SchemeRediss = "rediss"

	ModeSingle   = "single"
	ModeCluster  = "cluster"
	ModeSentinel = "sentinel"
)

// Address is one server endpoint.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// PoolSize bounds the connection pool. A preserved size lets the pool open
// more connections under load and only keeps Limit of them around.
type PoolSize struct {
	Limit     int
	Preserved bool
}

// MaximumActiveConnections caps the pool at n live connections.
func MaximumActiveConnections(n int) PoolSize { return PoolSize{Limit: n} }

// MaximumPreservedConnections leaves active connections unbounded and keeps
// at most n idle.
func MaximumPreservedConnections(n int) PoolSize { return PoolSize{Limit: n, Preserved: true} }

func (s PoolSize) String() string {
	if s.Preserved {
		return fmt.Sprintf("preserved(%d)", s.Limit)
	}
	return fmt.Sprintf("active(%d)", s.Limit)
}

type PoolOptions struct {
	MaximumConnectionCount PoolSize
	MinimumConnectionCount int
	BackoffFactor          float64
	InitialBackoffDelay    time.Duration
	RetryTimeout           *time.Duration
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaximumConnectionCount: MaximumActiveConnections(2),
		MinimumConnectionCount: 0,
		BackoffFactor:          2,
		InitialBackoffDelay:    100 * time.Millisecond,
	}
}

func (p PoolOptions) Validate() error {
	switch {
	case p.MaximumConnectionCount.Limit <= 0:
		return invalid(ErrInvalidPoolOptions, "", fmt.Errorf("maximum connection count must be > 0, got %d", p.MaximumConnectionCount.Limit))
	case p.MinimumConnectionCount < 0:
		return invalid(ErrInvalidPoolOptions, "", fmt.Errorf("minimum connection count must be >= 0, got %d", p.MinimumConnectionCount))
	case !p.MaximumConnectionCount.Preserved && p.MinimumConnectionCount > p.MaximumConnectionCount.Limit:
		return invalid(ErrInvalidPoolOptions, "", fmt.Errorf("minimum connection count %d exceeds maximum %d", p.MinimumConnectionCount, p.MaximumConnectionCount.Limit))
	case p.BackoffFactor <= 0:
		return invalid(ErrInvalidPoolOptions, "", fmt.Errorf("backoff factor must be > 0, got %g", p.BackoffFactor))
	case p.InitialBackoffDelay < 0:
		return invalid(ErrInvalidPoolOptions, "", fmt.Errorf("initial backoff delay must be >= 0, got %s", p.InitialBackoffDelay))
	case p.RetryTimeout != nil && *p.RetryTimeout < 0:
		return invalid(ErrInvalidPoolOptions, "", fmt.Errorf("retry timeout must be >= 0, got %s", *p.RetryTimeout))
	}
	return nil
}

// Configuration describes how to reach and authenticate to a Redis
// deployment. Build it with ParseURL, FromURL, FromHost or FromAddresses and
// treat it as read-only afterwards.
type Configuration struct {
	Addresses   []Address
	Username    string
	Password    string
	Database    *int
	TLS         *tls.Config
	TLSHostname string
	Pool        PoolOptions

	Mode       string
	MasterName string
	ClientName string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redacted returns a shallow copy safe to log.
func (c *Configuration) Redacted() Configuration {
	out := *c
	if out.Password != "" {
		out.Password = "******"
	}
	return out
}

// AddrStrings returns the addresses as host:port.
func (c *Configuration) AddrStrings() []string {
	out := make([]string, 0, len(c.Addresses))
	for _, a := range c.Addresses {
		out = append(out, a.String())
	}
	return out
}

// DatabaseIndex returns the selected database or 0.
func (c *Configuration) DatabaseIndex() int {
	if c.Database == nil {
		return 0
	}
	return *c.Database
}

// Option adjusts a Configuration while it is being resolved.
type Option func(*Configuration)

func WithPassword(password string) Option {
	return func(c *Configuration) { c.Password = password }
}

func WithUsername(username string) Option {
	return func(c *Configuration) { c.Username = username }
}

func WithDatabase(db int) Option {
	return func(c *Configuration) { c.Database = &db }
}

// WithTLS enables TLS with the given client settings.
func WithTLS(cfg *tls.Config) Option {
	return func(c *Configuration) { c.TLS = cfg }
}

func WithTLSHostname(host string) Option {
	return func(c *Configuration) { c.TLSHostname = host }
}

func WithPool(p PoolOptions) Option {
	return func(c *Configuration) { c.Pool = p }
}

func WithMode(mode string) Option {
	return func(c *Configuration) { c.Mode = strings.ToLower(mode) }
}

func WithMasterName(name string) Option {
	return func(c *Configuration) { c.MasterName = name }
}

func WithClientName(name string) Option {
	return func(c *Configuration) { c.ClientName = name }
}

// WithTimeouts sets dial, read and write timeouts; zero keeps the driver default.
func WithTimeouts(dial, read, write time.Duration) Option {
	return func(c *Configuration) {
		c.DialTimeout = dial
		c.ReadTimeout = read
		c.WriteTimeout = write
	}
}

// ParseURL resolves redis://[user:password@]host[:port][/db] and the rediss
// variant.
func ParseURL(raw string, opts ...Option) (*Configuration, error) {
	u, err := url.Parse(raw)
	if err != nil {
		// the raw string may carry a password, keep it out of the error
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, invalid(ErrInvalidURLString, "", err)
	}
	return FromURL(u, opts...)
}

// FromURL resolves a parsed URL. A rediss scheme turns TLS on with a default
// client profile unless WithTLS supplied one. Options given here are applied
// after the values taken from the URL.
func FromURL(u *url.URL, opts ...Option) (*Configuration, error) {
	if u == nil || u.Scheme == "" {
		return nil, invalid(ErrMissingURLScheme, "", nil)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != SchemeRedis && scheme != SchemeRediss {
		return nil, invalid(ErrInvalidURLScheme, u.Scheme, nil)
	}
	host := u.Hostname()
	if host == "" {
		return nil, invalid(ErrMissingURLHost, "", nil)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return nil, invalid(ErrInvalidURLString, "", fmt.Errorf("invalid port %q", p))
		}
		port = n
	}

	var fromURL []Option
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			fromURL = append(fromURL, WithPassword(pw))
		}
		if name := u.User.Username(); name != "" {
			fromURL = append(fromURL, WithUsername(name))
		}
	}
	if db, ok := databaseFromPath(u.Path); ok {
		fromURL = append(fromURL, WithDatabase(db))
	}

	cfg, err := FromHost(host, port, append(fromURL, opts...)...)
	if err != nil {
		return nil, err
	}
	if scheme == SchemeRediss && cfg.TLS == nil {
		cfg.TLS = defaultTLSConfig(cfg.TLSHostname)
	}
	return cfg, nil
}

// databaseFromPath reads the last path segment as a database index. Anything
// that is not an integer means no database is selected.
func databaseFromPath(p string) (int, bool) {
	if p == "" {
		return 0, false
	}
	n, err := strconv.Atoi(path.Base(p))
	if err != nil {
		return 0, false
	}
	return n, true
}

// FromHost resolves a single endpoint. The hostname doubles as the TLS server
// name unless WithTLSHostname overrides it.
func FromHost(host string, port int, opts ...Option) (*Configuration, error) {
	if host == "" {
		return nil, invalid(ErrMissingURLHost, "", nil)
	}
	if port == 0 {
		port = DefaultPort
	}
	return FromAddresses([]Address{{Host: host, Port: port}}, append([]Option{WithTLSHostname(host)}, opts...)...)
}

// FromAddresses is the primitive constructor the others reduce to.
func FromAddresses(addrs []Address, opts ...Option) (*Configuration, error) {
	if len(addrs) == 0 {
		return nil, invalid(ErrNoServerAddresses, "", nil)
	}
	cfg := &Configuration{
		Addresses: append([]Address(nil), addrs...),
		Pool:      DefaultPoolOptions(),
		Mode:      ModeSingle,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Database != nil && *cfg.Database < 0 {
		return nil, invalid(ErrOutOfBoundsDatabaseID, strconv.Itoa(*cfg.Database), nil)
	}
	for _, a := range cfg.Addresses {
		if a.Host == "" || a.Port <= 0 || a.Port > 65535 {
			return nil, invalid(ErrNoServerAddresses, a.String(), fmt.Errorf("invalid endpoint"))
		}
	}
	switch cfg.Mode {
	case ModeSingle, ModeCluster:
	case ModeSentinel:
		if cfg.MasterName == "" {
			return nil, invalid(ErrInvalidMode, cfg.Mode, fmt.Errorf("sentinel mode requires a master name"))
		}
	default:
		return nil, invalid(ErrInvalidMode, cfg.Mode, nil)
	}
	if err := cfg.Pool.Validate(); err != nil {
		return nil, err
	}
	if cfg.TLS != nil && cfg.TLS.ServerName == "" && cfg.TLSHostname != "" {
		t := cfg.TLS.Clone()
		t.ServerName = cfg.TLSHostname
		cfg.TLS = t
	}
	return cfg, nil
}

func defaultTLSConfig(serverName string) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}
}
