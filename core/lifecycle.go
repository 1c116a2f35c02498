package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/hooks"
)

const defaultComponentTimeout = 30 * time.Second

// LifecycleManager starts components in dependency order and stops them in
// reverse, running the hook phases around both.
type LifecycleManager struct {
	container   *Container
	hookManager *hooks.Manager
	timeout     time.Duration

	mutex          sync.Mutex
	started        []Component
	shutdownCalled bool
}

func NewLifecycleManager(container *Container) *LifecycleManager {
	return NewLifecycleManagerWithManager(container, hooks.NewManager())
}

// NewLifecycleManagerWithManager shares an existing hook manager, usually the
// global one so default hooks take effect.
func NewLifecycleManagerWithManager(container *Container, hm *hooks.Manager) *LifecycleManager {
	if hm == nil {
		hm = hooks.NewManager()
	}
	return &LifecycleManager{
		container:   container,
		hookManager: hm,
		timeout:     defaultComponentTimeout,
	}
}

// SetTimeout bounds each component Start and Stop call.
func (lm *LifecycleManager) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		lm.timeout = timeout
	}
}

func (lm *LifecycleManager) AddHook(name string, phase hooks.Phase, function hooks.HookFunc, priority int) error {
	return lm.hookManager.Register(&hooks.Hook{
		Name:     name,
		Phase:    phase,
		Function: function,
		Priority: priority,
	})
}

// StartAll starts every registered component. On failure the components
// already started are stopped again and the error is returned.
func (lm *LifecycleManager) StartAll(ctx context.Context) error {
	if err := lm.hookManager.Execute(ctx, hooks.BeforeStart); err != nil {
		return fmt.Errorf("before_start hooks failed: %w", err)
	}

	components, err := lm.container.SortComponentsByDependencies()
	if err != nil {
		return fmt.Errorf("failed to sort components: %w", err)
	}

	log := zap.L()
	for _, comp := range components {
		startCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := comp.Start(startCtx)
		cancel()

		if err != nil {
			log.Error("component start failed", zap.String("component", comp.Name()), zap.Error(err))
			lm.rollback(context.Background())
			return fmt.Errorf("failed to start component %s: %w", comp.Name(), err)
		}

		lm.mutex.Lock()
		lm.started = append(lm.started, comp)
		lm.mutex.Unlock()
		log.Debug("component started", zap.String("component", comp.Name()))
	}

	if err := lm.hookManager.Execute(ctx, hooks.AfterStart); err != nil {
		log.Warn("after_start hooks failed", zap.Error(err))
	}
	return nil
}

// StopAll stops started components in reverse start order. Only the first
// call has any effect.
func (lm *LifecycleManager) StopAll(ctx context.Context) {
	lm.mutex.Lock()
	if lm.shutdownCalled {
		lm.mutex.Unlock()
		return
	}
	lm.shutdownCalled = true
	lm.mutex.Unlock()

	log := zap.L()
	if err := lm.hookManager.Execute(ctx, hooks.BeforeShutdown); err != nil {
		log.Warn("before_shutdown hooks failed", zap.Error(err))
	}

	lm.rollback(ctx)

	if err := lm.hookManager.Execute(ctx, hooks.AfterShutdown); err != nil {
		log.Warn("after_shutdown hooks failed", zap.Error(err))
	}
}

func (lm *LifecycleManager) rollback(ctx context.Context) {
	lm.mutex.Lock()
	started := lm.started
	lm.started = nil
	lm.mutex.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		comp := started[i]
		if !comp.IsActive() {
			continue
		}
		stopCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		if err := comp.Stop(stopCtx); err != nil {
			zap.L().Error("component stop failed", zap.String("component", comp.Name()), zap.Error(err))
		}
		cancel()
	}
}
