package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/config"
)

var resolveURL string

var resolveCmd = &cobra.Command{
	Use:   "resolve [id...]",
	Short: "Print the resolved redis configuration",
	Long:  `Resolve --url, or the redis clients of the config file, and print the result with the password masked.`,
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveURL, "url", "", "redis:// or rediss:// URL to resolve instead of the config file")
}

type resolvedPool struct {
	MaxConnections      int     `yaml:"max_connections"`
	PreserveConnections bool    `yaml:"preserve_connections"`
	MinConnections      int     `yaml:"min_connections"`
	BackoffFactor       float64 `yaml:"backoff_factor"`
	InitialBackoff      string  `yaml:"initial_backoff"`
	RetryTimeout        string  `yaml:"retry_timeout,omitempty"`
}

type resolved struct {
	Addresses   []string     `yaml:"addresses"`
	Mode        string       `yaml:"mode"`
	MasterName  string       `yaml:"master_name,omitempty"`
	Username    string       `yaml:"username,omitempty"`
	Password    string       `yaml:"password,omitempty"`
	Database    *int         `yaml:"db,omitempty"`
	TLS         bool         `yaml:"tls"`
	TLSHostname string       `yaml:"tls_hostname,omitempty"`
	Pool        resolvedPool `yaml:"pool"`
}

func toResolved(cfg *redis.Configuration) resolved {
	r := cfg.Redacted()
	out := resolved{
		Addresses:   r.AddrStrings(),
		Mode:        r.Mode,
		MasterName:  r.MasterName,
		Username:    r.Username,
		Password:    r.Password,
		Database:    r.Database,
		TLS:         r.TLS != nil,
		TLSHostname: r.TLSHostname,
		Pool: resolvedPool{
			MaxConnections:      r.Pool.MaximumConnectionCount.Limit,
			PreserveConnections: r.Pool.MaximumConnectionCount.Preserved,
			MinConnections:      r.Pool.MinimumConnectionCount,
			BackoffFactor:       r.Pool.BackoffFactor,
			InitialBackoff:      r.Pool.InitialBackoffDelay.String(),
		},
	}
	if r.Pool.RetryTimeout != nil {
		out.Pool.RetryTimeout = r.Pool.RetryTimeout.String()
	}
	return out
}

func runResolve(cmd *cobra.Command, args []string) error {
	out := map[string]resolved{}
	if resolveURL != "" {
		cfg, err := redis.ParseURL(resolveURL)
		if err != nil {
			return err
		}
		out[string(redis.DefaultID)] = toResolved(cfg)
	} else {
		cm := config.NewConfigManager(env, configPath)
		if err := cm.LoadConfig(); err != nil {
			return err
		}
		clients := cm.RedisClients()
		if len(clients) == 0 {
			return fmt.Errorf("no redis clients configured in %s", cm.Path())
		}
		ids := args
		if len(ids) == 0 {
			for id := range clients {
				ids = append(ids, id)
			}
			sort.Strings(ids)
		}
		for _, id := range ids {
			cc, ok := clients[id]
			if !ok || cc == nil {
				return fmt.Errorf("redis client %q is not configured", id)
			}
			cfg, err := cc.Resolve()
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			out[id] = toResolved(cfg)
		}
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(out)
}
