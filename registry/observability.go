package registry

import (
	"strings"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/prometheus"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/config"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

// Logging and metrics fill unset file and namespace names from app_info.
func init() {
	Register(consts.COMPONENT_LOGGING, buildLogging)
	Register(consts.COMPONENT_PROMETHEUS, buildPrometheus)
}

func buildLogging(cfg *config.AppConfig, _ *core.Container) (bool, core.Component, error) {
	lc := cfg.Logging
	if lc == nil || !lc.Enabled {
		return false, nil, nil
	}
	if strings.EqualFold(lc.Output, "file") && appName(cfg) != "" {
		if lc.File == nil {
			lc.File = &logging.File{}
		}
		if lc.File.Filename == "" {
			lc.File.Filename = appName(cfg)
		}
	}
	comp, err := logging.NewFactory().Create(lc)
	return true, comp, err
}

func buildPrometheus(cfg *config.AppConfig, _ *core.Container) (bool, core.Component, error) {
	pc := cfg.Prometheus
	if pc == nil || !pc.Enabled {
		return false, nil, nil
	}
	if pc.Namespace == "" {
		pc.Namespace = metricNamespace(appName(cfg))
	}
	comp, err := prometheus.NewFactory().Create(pc)
	return true, comp, err
}

func appName(cfg *config.AppConfig) string {
	if cfg.APPInfo == nil {
		return ""
	}
	return cfg.APPInfo.APPName
}

// metricNamespace maps name onto the prometheus metric name alphabet.
func metricNamespace(name string) string {
	ns := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
	if ns != "" && ns[0] >= '0' && ns[0] <= '9' {
		ns = "_" + ns
	}
	return ns
}
