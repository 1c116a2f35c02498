package redis

import (
	"crypto/tls"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		addr     string
		db       *int
		password string
		username string
		tls      bool
	}{
		{name: "host and port with db", raw: "redis://cache.local:6380/3", addr: "cache.local:6380", db: intPtr(3)},
		{name: "default port", raw: "redis://cache.local", addr: "cache.local:6379"},
		{name: "non numeric db ignored", raw: "redis://cache.local/abc", addr: "cache.local:6379"},
		{name: "last segment wins", raw: "redis://cache.local/x/7", addr: "cache.local:6379", db: intPtr(7)},
		{name: "password only", raw: "redis://:s3cret@cache.local:6379/0", addr: "cache.local:6379", db: intPtr(0), password: "s3cret"},
		{name: "acl user", raw: "redis://app:pw@cache.local", addr: "cache.local:6379", password: "pw", username: "app"},
		{name: "rediss enables tls", raw: "rediss://secure.local:6390", addr: "secure.local:6390", tls: true},
		{name: "ipv6", raw: "redis://[::1]:7000/2", addr: "[::1]:7000", db: intPtr(2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseURL(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, []string{tc.addr}, cfg.AddrStrings())
			assert.Equal(t, tc.db, cfg.Database)
			assert.Equal(t, tc.password, cfg.Password)
			assert.Equal(t, tc.username, cfg.Username)
			assert.Equal(t, tc.tls, cfg.TLS != nil)
			assert.Equal(t, ModeSingle, cfg.Mode)
			assert.Equal(t, DefaultPoolOptions(), cfg.Pool)
		})
	}
}

func TestParseURLErrors(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{"://missing", ErrInvalidURLString},
		{"redis://cache.local:notaport", ErrInvalidURLString},
		{"cache.local:6379", ErrInvalidURLScheme},
		{"//cache.local:6379", ErrMissingURLScheme},
		{"http://cache.local", ErrInvalidURLScheme},
		{"redis:///0", ErrMissingURLHost},
		{"rediss://:pw@/1", ErrMissingURLHost},
	}
	for _, tc := range cases {
		_, err := ParseURL(tc.raw)
		require.Error(t, err, tc.raw)
		assert.ErrorIs(t, err, tc.want, tc.raw)

		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), tc.raw)
	}
}

func TestParseURLKeepsPasswordOutOfErrors(t *testing.T) {
	_, err := ParseURL("redis://:hunter2@cache.local:bad")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestFromURLNil(t *testing.T) {
	_, err := FromURL(nil)
	assert.ErrorIs(t, err, ErrMissingURLScheme)
}

func TestRedissUsesDefaultTLSProfile(t *testing.T) {
	cfg, err := ParseURL("rediss://secure.local")
	require.NoError(t, err)
	require.NotNil(t, cfg.TLS)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.TLS.MinVersion)
	assert.Equal(t, "secure.local", cfg.TLS.ServerName)
	assert.Equal(t, "secure.local", cfg.TLSHostname)
}

func TestRedissKeepsSuppliedTLS(t *testing.T) {
	supplied := &tls.Config{MinVersion: tls.VersionTLS13, ServerName: "override"}
	cfg, err := ParseURL("rediss://secure.local", WithTLS(supplied))
	require.NoError(t, err)
	assert.Same(t, supplied, cfg.TLS)
}

func TestRedisSchemeTLSOnlyWhenSupplied(t *testing.T) {
	cfg, err := ParseURL("redis://plain.local")
	require.NoError(t, err)
	assert.Nil(t, cfg.TLS)

	cfg, err = ParseURL("redis://plain.local", WithTLS(&tls.Config{}))
	require.NoError(t, err)
	require.NotNil(t, cfg.TLS)
	// server name filled from the host
	assert.Equal(t, "plain.local", cfg.TLS.ServerName)
}

func TestOptionsOverrideURL(t *testing.T) {
	u, err := url.Parse("redis://:from-url@cache.local/1")
	require.NoError(t, err)
	cfg, err := FromURL(u, WithPassword("explicit"), WithDatabase(4))
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Password)
	assert.Equal(t, 4, cfg.DatabaseIndex())
}

func TestFromHostDatabaseBounds(t *testing.T) {
	_, err := FromHost("cache.local", 6379, WithDatabase(-1))
	assert.ErrorIs(t, err, ErrOutOfBoundsDatabaseID)

	for _, db := range []int{0, 1, 15} {
		cfg, err := FromHost("cache.local", 6379, WithDatabase(db))
		require.NoError(t, err)
		assert.Equal(t, db, *cfg.Database)
	}
}

func TestFromHostDefaults(t *testing.T) {
	cfg, err := FromHost("cache.local", 0)
	require.NoError(t, err)
	assert.Equal(t, []Address{{Host: "cache.local", Port: DefaultPort}}, cfg.Addresses)
	assert.Nil(t, cfg.Database)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, "cache.local", cfg.TLSHostname)

	_, err = FromHost("", 6379)
	assert.ErrorIs(t, err, ErrMissingURLHost)
}

func TestFromAddresses(t *testing.T) {
	_, err := FromAddresses(nil)
	assert.ErrorIs(t, err, ErrNoServerAddresses)

	addrs := []Address{{Host: "a", Port: 7000}, {Host: "b", Port: 7001}}
	cfg, err := FromAddresses(addrs, WithMode("CLUSTER"))
	require.NoError(t, err)
	assert.Equal(t, ModeCluster, cfg.Mode)
	assert.Equal(t, []string{"a:7000", "b:7001"}, cfg.AddrStrings())

	// caller's slice is copied
	addrs[0].Host = "changed"
	assert.Equal(t, "a", cfg.Addresses[0].Host)

	_, err = FromAddresses([]Address{{Host: "a", Port: 70000}})
	assert.ErrorIs(t, err, ErrNoServerAddresses)
}

func TestSentinelNeedsMaster(t *testing.T) {
	addrs := []Address{{Host: "s1", Port: 26379}}
	_, err := FromAddresses(addrs, WithMode(ModeSentinel))
	assert.ErrorIs(t, err, ErrInvalidMode)

	cfg, err := FromAddresses(addrs, WithMode(ModeSentinel), WithMasterName("mymaster"))
	require.NoError(t, err)
	assert.Equal(t, "mymaster", cfg.MasterName)

	_, err = FromAddresses(addrs, WithMode("ring"))
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestPoolOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultPoolOptions().Validate())

	bad := DefaultPoolOptions()
	bad.MinimumConnectionCount = 3
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPoolOptions)

	// min above the preserved count is fine, active connections are unbounded
	preserved := DefaultPoolOptions()
	preserved.MaximumConnectionCount = MaximumPreservedConnections(2)
	preserved.MinimumConnectionCount = 3
	assert.NoError(t, preserved.Validate())

	bad = DefaultPoolOptions()
	bad.BackoffFactor = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPoolOptions)

	bad = DefaultPoolOptions()
	bad.MinimumConnectionCount = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPoolOptions)

	_, err := FromHost("cache.local", 6379, WithPool(PoolOptions{}))
	assert.ErrorIs(t, err, ErrInvalidPoolOptions)
}

func TestDefaultPoolOptions(t *testing.T) {
	p := DefaultPoolOptions()
	assert.Equal(t, MaximumActiveConnections(2), p.MaximumConnectionCount)
	assert.Equal(t, 0, p.MinimumConnectionCount)
	assert.Equal(t, 2.0, p.BackoffFactor)
	assert.Equal(t, 100*time.Millisecond, p.InitialBackoffDelay)
	assert.Nil(t, p.RetryTimeout)
}

func TestRedacted(t *testing.T) {
	cfg, err := ParseURL("redis://:secret@cache.local")
	require.NoError(t, err)
	r := cfg.Redacted()
	assert.Equal(t, "******", r.Password)
	assert.Equal(t, "secret", cfg.Password)
}

func intPtr(n int) *int { return &n }
