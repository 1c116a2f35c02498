package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrComponentNotFound = errors.New("component not found")

// Container holds the components built for one application.
type Container struct {
	components map[string]Component
	mutex      sync.RWMutex
}

func NewContainer() *Container {
	return &Container{
		components: make(map[string]Component),
	}
}

func (c *Container) Register(name string, component Component) error {
	if component == nil {
		return fmt.Errorf("component %s is nil", name)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.components[name]; exists {
		return fmt.Errorf("component %s already registered", name)
	}
	c.components[name] = component
	return nil
}

func (c *Container) Resolve(name string) (Component, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	component, exists := c.components[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, name)
	}
	return component, nil
}

// Has reports whether name is registered.
func (c *Container) Has(name string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, ok := c.components[name]
	return ok
}

// Names returns registered component names in lexical order.
func (c *Container) Names() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortComponentsByDependencies orders components so every dependency comes
// before its dependents. Optional dependencies that are not registered are
// ignored.
func (c *Container) SortComponentsByDependencies() ([]Component, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	result := make([]Component, 0, len(c.components))

	var visit func(string, bool) error
	visit = func(name string, optional bool) error {
		if visiting[name] {
			return fmt.Errorf("circular dependency detected involving component %s", name)
		}
		if visited[name] {
			return nil
		}
		component, exists := c.components[name]
		if !exists {
			if optional {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrComponentNotFound, name)
		}

		visiting[name] = true
		for _, dep := range component.Dependencies() {
			depName, depOptional := ParseDependency(dep)
			if err := visit(depName, depOptional); err != nil {
				return err
			}
		}
		visiting[name] = false
		visited[name] = true
		result = append(result, component)
		return nil
	}

	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := visit(name, false); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Replace swaps a registered component that has not been started. Used by
// tests to install doubles.
func (c *Container) Replace(name string, component Component) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	existing, exists := c.components[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, name)
	}
	if existing.IsActive() {
		return fmt.Errorf("component %s is active; cannot replace", name)
	}
	c.components[name] = component
	return nil
}

// ValidateDependencies reports every missing required dependency, then runs
// the topological sort for cycle detection.
func (c *Container) ValidateDependencies() ([]Component, error) {
	c.mutex.RLock()
	missing := make(map[string][]string)
	for name, comp := range c.components {
		for _, dep := range comp.Dependencies() {
			depName, optional := ParseDependency(dep)
			if _, ok := c.components[depName]; !ok && !optional {
				missing[name] = append(missing[name], depName)
			}
		}
	}
	c.mutex.RUnlock()

	if len(missing) > 0 {
		parts := make([]string, 0, len(missing))
		for k, v := range missing {
			parts = append(parts, fmt.Sprintf("%s -> [%s]", k, strings.Join(v, ",")))
		}
		sort.Strings(parts)
		return nil, fmt.Errorf("missing component dependencies: %s", strings.Join(parts, "; "))
	}
	return c.SortComponentsByDependencies()
}
