package registry

import (
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/http_server"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/config"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

func init() {
	Register(consts.COMPONENT_HTTP_SERVER, func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error) {
		if cfg.HTTPServer == nil || !cfg.HTTPServer.Enabled {
			return false, nil, nil
		}
		if cfg.APPInfo != nil && cfg.HTTPServer.ServiceName == "" {
			cfg.HTTPServer.ServiceName = cfg.APPInfo.APPName
		}
		factory := http_server.NewFactory(c)
		comp, err := factory.Create(cfg.HTTPServer)
		if err != nil {
			return true, nil, err
		}
		return true, comp, nil
	})
}
