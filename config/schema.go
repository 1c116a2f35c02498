// config/schema.go
package config

import (
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/http_server"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/prometheus"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/telemetry"
)

// AppConfig 应用程序配置结构
type AppConfig struct {
	APPInfo    *APPInfo                      `yaml:"app_info" json:"app_info"`
	Logging    *logging.LoggingConfig        `yaml:"logging" json:"logging"`
	HTTPServer *http_server.HTTPServerConfig `yaml:"http_server" json:"http_server"`
	Prometheus *prometheus.Config            `yaml:"prometheus" json:"prometheus"`
	Redis      *redis.RegistryConfig         `yaml:"redis" json:"redis"`
	Telemetry  *telemetry.Config             `yaml:"telemetry" json:"telemetry"`
	BizConfig  any                           `yaml:"biz_config" json:"biz_config"`
}

type APPInfo struct {
	APPName string `yaml:"app_name" json:"app_name"`
	ENV     string `yaml:"env" json:"env"`
}
