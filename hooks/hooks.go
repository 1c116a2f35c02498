package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type HookFunc func(ctx context.Context) error

// Phase names a lifecycle point at which hooks run.
type Phase string

const (
	BeforeStart    Phase = "before_start"
	AfterStart     Phase = "after_start"
	BeforeShutdown Phase = "before_shutdown"
	AfterShutdown  Phase = "after_shutdown"
)

type Hook struct {
	Name     string
	Phase    Phase
	Function HookFunc
	Priority int // lower runs first
}

// Manager keeps hooks per phase ordered by priority.
type Manager struct {
	hooks map[Phase][]*Hook
	mutex sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		hooks: make(map[Phase][]*Hook),
	}
}

func (m *Manager) Register(hook *Hook) error {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	if hook.Function == nil {
		return fmt.Errorf("hook %s: function cannot be nil", hook.Name)
	}
	if !isValidPhase(hook.Phase) {
		return fmt.Errorf("invalid hook phase: %s", hook.Phase)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	list := append(m.hooks[hook.Phase], hook)
	// stable keeps registration order among equal priorities
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Priority < list[j].Priority
	})
	m.hooks[hook.Phase] = list
	return nil
}

// Execute runs the hooks of phase in order and stops at the first error.
func (m *Manager) Execute(ctx context.Context, phase Phase) error {
	m.mutex.RLock()
	hooks := make([]*Hook, len(m.hooks[phase]))
	copy(hooks, m.hooks[phase])
	m.mutex.RUnlock()

	for _, hook := range hooks {
		if err := hook.Function(ctx); err != nil {
			return fmt.Errorf("hook %s failed: %w", hook.Name, err)
		}
	}
	return nil
}

func isValidPhase(phase Phase) bool {
	switch phase {
	case BeforeStart, AfterStart, BeforeShutdown, AfterShutdown:
		return true
	}
	return false
}
