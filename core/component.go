package core

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// optionalSuffix marks a dependency that only orders startup when the
// named component is registered.
const optionalSuffix = "?"

// Component is a unit managed by the lifecycle.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HealthCheck() error
	Dependencies() []string
	IsActive() bool
}

// Optional returns the dependency form of name that is skipped when absent.
func Optional(name string) string { return name + optionalSuffix }

// ParseDependency splits a declared dependency into its component name and
// whether it is optional.
func ParseDependency(dep string) (string, bool) {
	if strings.HasSuffix(dep, optionalSuffix) {
		return strings.TrimSuffix(dep, optionalSuffix), true
	}
	return dep, false
}

// BaseComponent carries name, dependencies and the active flag. Embed it and
// call through from Start/Stop.
type BaseComponent struct {
	name   string
	active atomic.Bool
	deps   []string
}

func NewBaseComponent(name string, deps ...string) *BaseComponent {
	return &BaseComponent{
		name: name,
		deps: deps,
	}
}

func (c *BaseComponent) Name() string {
	return c.name
}

func (c *BaseComponent) Dependencies() []string {
	return c.deps
}

func (c *BaseComponent) IsActive() bool {
	return c.active.Load()
}

func (c *BaseComponent) SetActive(active bool) {
	c.active.Store(active)
}

func (c *BaseComponent) Start(ctx context.Context) error {
	c.active.Store(true)
	return nil
}

func (c *BaseComponent) Stop(ctx context.Context) error {
	c.active.Store(false)
	return nil
}

func (c *BaseComponent) HealthCheck() error {
	if !c.active.Load() {
		return fmt.Errorf("component %s is not active", c.name)
	}
	return nil
}

// AddDependencies appends start-order constraints. Only valid before StartAll.
func (c *BaseComponent) AddDependencies(deps ...string) {
	if len(deps) == 0 {
		return
	}
	c.deps = append(c.deps, deps...)
}
