package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/config"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

// BuilderFunc returns (enabled, component, error). enabled=false skips registration.
type BuilderFunc func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error)

// Builder holds metadata.
type Builder struct {
	Name string      // component name
	Fn   BuilderFunc // build function
	Deps []string    // builders that must run first
}

var (
	buildersMu sync.Mutex
	builders   []*Builder
)

func findBuilder(name string) *Builder {
	for _, b := range builders {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Register registers a component builder.
func Register(name string, fn BuilderFunc) {
	RegisterWithDeps(name, nil, fn)
}

// RegisterWithDeps registers a builder that must run after deps. Build order
// only matters when a builder resolves another component from the container.
func RegisterWithDeps(name string, deps []string, fn BuilderFunc) {
	if name == "" {
		panic("registry: empty name in Register")
	}
	if fn == nil {
		panic("registry: nil builder for " + name)
	}
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if findBuilder(name) != nil {
		panic("registry: duplicate builder name " + name)
	}
	builders = append(builders, &Builder{Name: name, Fn: fn, Deps: deps})
}

// Names returns the registered builder names in build order.
func Names() ([]string, error) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	ordered, err := topoSortBuilders(builders)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ordered))
	for _, b := range ordered {
		out = append(out, b.Name)
	}
	return out, nil
}

// BuildAndRegisterAll builds every registered builder in dependency order and
// registers the enabled components into c.
func BuildAndRegisterAll(cfg *config.AppConfig, c *core.Container) error {
	buildersMu.Lock()
	ordered, err := topoSortBuilders(builders)
	buildersMu.Unlock()
	if err != nil {
		return err
	}
	for _, b := range ordered {
		enabled, comp, err := b.Fn(cfg, c)
		if err != nil {
			return fmt.Errorf("build %s failed: %w", b.Name, err)
		}
		if !enabled || comp == nil {
			continue
		}
		if err := c.Register(b.Name, comp); err != nil {
			return fmt.Errorf("register %s failed: %w", b.Name, err)
		}
	}
	applyRuntimeDepExtensions(c)
	return nil
}

// topoSortBuilders orders builders by their declared deps; ties break by name.
func topoSortBuilders(list []*Builder) ([]*Builder, error) {
	nameMap := map[string]*Builder{}
	inDeg := map[string]int{}
	adj := map[string][]string{}
	for _, b := range list {
		nameMap[b.Name] = b
		inDeg[b.Name] = 0
	}
	for _, b := range list {
		for _, d := range b.Deps {
			if _, ok := nameMap[d]; !ok {
				continue
			}
			adj[d] = append(adj[d], b.Name)
			inDeg[b.Name]++
		}
	}
	var zero []string
	for n, d := range inDeg {
		if d == 0 {
			zero = append(zero, n)
		}
	}
	sort.Strings(zero)
	var ordered []*Builder
	for len(zero) > 0 {
		n := zero[0]
		zero = zero[1:]
		ordered = append(ordered, nameMap[n])
		for _, nxt := range adj[n] {
			inDeg[nxt]--
			if inDeg[nxt] == 0 {
				zero = append(zero, nxt)
			}
		}
		sort.Strings(zero)
	}
	if len(ordered) != len(nameMap) {
		var cyc []string
		for n, d := range inDeg {
			if d > 0 {
				cyc = append(cyc, n)
			}
		}
		sort.Strings(cyc)
		return nil, fmt.Errorf("registry: cyclic builder deps: %v", cyc)
	}
	return ordered, nil
}
