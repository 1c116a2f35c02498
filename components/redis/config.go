package redis

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// RegistryConfig is the redis section of the application config.
type RegistryConfig struct {
	Enabled      bool                     `yaml:"enabled" json:"enabled"`
	Default      string                   `yaml:"default" json:"default"` // identifier served for DefaultID lookups
	VerifyOnBoot bool                     `yaml:"verify_on_boot" json:"verify_on_boot"`
	Clients      map[string]*ClientConfig `yaml:"clients" json:"clients"`
}

// ClientConfig describes one identifier. URL wins over Addresses, which win
// over Host/Port; the discrete fields override what the URL carries.
type ClientConfig struct {
	URL       string   `yaml:"url" json:"url"`
	Host      string   `yaml:"host" json:"host"`
	Port      int      `yaml:"port" json:"port"`
	Addresses []string `yaml:"addresses" json:"addresses"`

	Username   string `yaml:"username" json:"username"`
	Password   string `yaml:"password" json:"password"`
	DB         *int   `yaml:"db" json:"db"`
	Mode       string `yaml:"mode" json:"mode"` // single|cluster|sentinel
	MasterName string `yaml:"master_name" json:"master_name"`
	ClientName string `yaml:"client_name" json:"client_name"`

	TLS  *TLSConfig  `yaml:"tls" json:"tls"`
	Pool *PoolConfig `yaml:"pool" json:"pool"`

	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" json:"enabled"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	ServerName         string `yaml:"server_name" json:"server_name"`
	CAFile             string `yaml:"ca_file" json:"ca_file"`
	CertFile           string `yaml:"cert_file" json:"cert_file"`
	KeyFile            string `yaml:"key_file" json:"key_file"`
}

// PoolConfig fields left at zero keep the DefaultPoolOptions value.
type PoolConfig struct {
	MaxConnections      int           `yaml:"max_connections" json:"max_connections"`
	PreserveConnections bool          `yaml:"preserve_connections" json:"preserve_connections"`
	MinConnections      int           `yaml:"min_connections" json:"min_connections"`
	BackoffFactor       float64       `yaml:"backoff_factor" json:"backoff_factor"`
	InitialBackoff      time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	RetryTimeout        time.Duration `yaml:"retry_timeout" json:"retry_timeout"`
}

func (p *PoolConfig) options() PoolOptions {
	opts := DefaultPoolOptions()
	if p == nil {
		return opts
	}
	if p.MaxConnections != 0 {
		opts.MaximumConnectionCount.Limit = p.MaxConnections
	}
	opts.MaximumConnectionCount.Preserved = p.PreserveConnections
	opts.MinimumConnectionCount = p.MinConnections
	if p.BackoffFactor != 0 {
		opts.BackoffFactor = p.BackoffFactor
	}
	if p.InitialBackoff != 0 {
		opts.InitialBackoffDelay = p.InitialBackoff
	}
	if p.RetryTimeout != 0 {
		rt := p.RetryTimeout
		opts.RetryTimeout = &rt
	}
	return opts
}

// Resolve turns the config into a validated Configuration.
func (c *ClientConfig) Resolve() (*Configuration, error) {
	opts := []Option{
		WithPool(c.Pool.options()),
		WithTimeouts(c.DialTimeout, c.ReadTimeout, c.WriteTimeout),
	}
	if c.Username != "" {
		opts = append(opts, WithUsername(c.Username))
	}
	if c.Password != "" {
		opts = append(opts, WithPassword(c.Password))
	}
	if c.DB != nil {
		opts = append(opts, WithDatabase(*c.DB))
	}
	if c.Mode != "" {
		opts = append(opts, WithMode(c.Mode))
	}
	if c.MasterName != "" {
		opts = append(opts, WithMasterName(c.MasterName))
	}
	if c.ClientName != "" {
		opts = append(opts, WithClientName(c.ClientName))
	}
	if c.TLS != nil && c.TLS.Enabled {
		tlsCfg, err := c.TLS.build()
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTLS(tlsCfg))
	}

	switch {
	case c.URL != "":
		return ParseURL(c.URL, opts...)
	case len(c.Addresses) > 0:
		addrs := make([]Address, 0, len(c.Addresses))
		for _, raw := range c.Addresses {
			a, err := parseAddress(raw)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, a)
		}
		return FromAddresses(addrs, opts...)
	case c.Host != "":
		return FromHost(c.Host, c.Port, opts...)
	}
	return nil, invalid(ErrNoServerAddresses, "", fmt.Errorf("one of url, addresses or host is required"))
}

// parseAddress accepts host or host:port.
func parseAddress(raw string) (Address, error) {
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		if raw == "" {
			return Address{}, invalid(ErrNoServerAddresses, raw, err)
		}
		return Address{Host: raw, Port: DefaultPort}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Address{}, invalid(ErrNoServerAddresses, raw, err)
	}
	return Address{Host: host, Port: port}, nil
}

func (t *TLSConfig) build() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: t.InsecureSkipVerify,
		ServerName:         t.ServerName,
	}
	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("redis tls: read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("redis tls: no certificates in %s", t.CAFile)
		}
		cfg.RootCAs = pool
	}
	if t.CertFile != "" || t.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("redis tls: load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
