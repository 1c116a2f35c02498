package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

// runtimeDepExtMap holds extra runtime dependency edges applied after the
// components are registered and before the lifecycle sorts them.
// key: target component name -> additional dependency names.
var (
	runtimeDepExtMap = map[string][]string{}
	runtimeDepExtMu  sync.Mutex
)

// ExtendRuntimeDependencies declares that component target should also depend
// on deps. It affects start/stop order only and must run before
// BuildAndRegisterAll. Use core.Optional names for components that may be
// disabled.
func ExtendRuntimeDependencies(target string, deps ...string) {
	if target == "" || len(deps) == 0 {
		return
	}
	runtimeDepExtMu.Lock()
	defer runtimeDepExtMu.Unlock()
	runtimeDepExtMap[target] = append(runtimeDepExtMap[target], deps...)
}

func applyRuntimeDepExtensions(c *core.Container) {
	runtimeDepExtMu.Lock()
	defer runtimeDepExtMu.Unlock()
	if len(runtimeDepExtMap) == 0 {
		return
	}
	for target, extra := range runtimeDepExtMap {
		comp, err := c.Resolve(target)
		if err != nil {
			zap.L().Warn("registry: runtime dep extension target not registered", zap.String("target", target), zap.Error(err))
			continue
		}
		extender, ok := comp.(interface{ AddDependencies(...string) })
		if !ok {
			zap.L().Warn("registry: component does not support AddDependencies", zap.String("target", target))
			continue
		}
		extender.AddDependencies(extra...)
		zap.L().Debug("registry: applied runtime dependency extension", zap.String("target", target), zap.Strings("deps", extra))
	}
	// applied once; a second BuildAndRegisterAll starts clean
	runtimeDepExtMap = map[string][]string{}
}
