package http_server

import "time"

// HTTPServerConfig defines server settings.
type HTTPServerConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Address         string        `yaml:"address" json:"address"`                   // e.g. ":8080"
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`         // whole request read, headers and body
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`       // response write
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`         // keep-alive idle
	GracefulTimeout time.Duration `yaml:"graceful_timeout" json:"graceful_timeout"` // in-flight requests on shutdown
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`   // per-request context deadline
	// Built-in endpoints
	EnableHealth bool `yaml:"enable_health" json:"enable_health"`
	// MetricsPath mounts the prometheus handler on this router when the
	// prometheus component is running. Empty disables it.
	MetricsPath string `yaml:"metrics_path" json:"metrics_path"`
	// ServiceName injected from APPInfo.APPName (not user configurable via YAML directly)
	ServiceName string `yaml:"-" json:"-"`
}
