package redisapp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/config"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/hooks"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/registry"
)

type App struct {
	container        *core.Container
	lifecycleManager *core.LifecycleManager
	configManager    *config.ConfigManager
	preloaded        *config.AppConfig

	bootOnce sync.Once
	bootErr  error

	shutdownTimeout time.Duration
}

func NewApp(env string, configPath string) *App {
	return newFileApp(env, configPath)
}

// NewAppWithBiz is NewApp that also decodes the biz_config section of the
// file into biz, a pointer owned by the caller. Read it back with BizConfig
// after Boot.
func NewAppWithBiz(env, configPath string, biz any) *App {
	return newFileApp(env, configPath, config.WithBizConfig(biz))
}

func newFileApp(env, configPath string, opts ...config.ManagerOption) *App {
	abs := configPath
	if p, err := filepath.Abs(configPath); err == nil {
		abs = p
	}
	app := newApp()
	app.configManager = config.NewConfigManager(env, abs, opts...)
	return app
}

// NewAppWithConfig skips the config file; cfg is validated at boot.
func NewAppWithConfig(cfg *config.AppConfig) *App {
	app := newApp()
	app.preloaded = cfg
	return app
}

func newApp() *App {
	container := core.NewContainer()
	// global hook manager so hooks registered in init() apply
	lm := core.NewLifecycleManagerWithManager(container, hooks.GetGlobalHookManager())
	return &App{
		container:        container,
		lifecycleManager: lm,
		shutdownTimeout:  30 * time.Second,
	}
}

// SetShutdownTimeout bounds StopAll after the run context ends.
func (app *App) SetShutdownTimeout(d time.Duration) { app.shutdownTimeout = d }

// Boot loads the config and builds every enabled component without starting
// any of them. Setup code calls it to reach components, e.g. Redis().Use,
// before Start. It runs once.
func (app *App) Boot() error {
	app.bootOnce.Do(func() {
		cfg, err := app.loadConfig()
		if err != nil {
			app.bootErr = fmt.Errorf("load config failed: %w", err)
			return
		}
		if err := registry.BuildAndRegisterAll(cfg, app.container); err != nil {
			app.bootErr = fmt.Errorf("register components failed: %w", err)
			return
		}
	})
	return app.bootErr
}

func (app *App) loadConfig() (*config.AppConfig, error) {
	if app.preloaded != nil {
		if err := config.NewValidator().ValidateAppConfig(app.preloaded); err != nil {
			return nil, err
		}
		return app.preloaded, nil
	}
	if app.configManager == nil {
		return nil, fmt.Errorf("no config source")
	}
	if err := app.configManager.LoadConfig(); err != nil {
		return nil, err
	}
	return app.configManager.GetConfig(), nil
}

func (app *App) GetComponent(name string) (core.Component, error) {
	return app.container.Resolve(name)
}

func (app *App) Container() *core.Container { return app.container }

func (app *App) GetConfig() *config.AppConfig {
	if app.preloaded != nil {
		return app.preloaded
	}
	if app.configManager == nil {
		return nil
	}
	return app.configManager.GetConfig()
}

// BizConfig returns the decoded biz_config section, nil before Boot or when
// the app was not built with NewAppWithBiz and the file has none.
func (app *App) BizConfig() any {
	if app.preloaded != nil {
		return app.preloaded.BizConfig
	}
	return app.configManager.BizConfig()
}

// Redis boots the app if needed and returns its client registry.
func (app *App) Redis() (*redis.Registry, error) {
	if err := app.Boot(); err != nil {
		return nil, err
	}
	comp, err := app.container.Resolve(consts.COMPONENT_REDIS)
	if err != nil {
		return nil, err
	}
	reg, ok := comp.(*redis.Registry)
	if !ok {
		return nil, fmt.Errorf("component %s is %T, not *redis.Registry", consts.COMPONENT_REDIS, comp)
	}
	return reg, nil
}

func (app *App) AddHook(name string, phase hooks.Phase, fn hooks.HookFunc, priority int) error {
	return app.lifecycleManager.AddHook(name, phase, fn, priority)
}

// Start boots the app and starts every component in dependency order.
func (app *App) Start(ctx context.Context) error {
	if err := app.Boot(); err != nil {
		return err
	}
	return app.lifecycleManager.StartAll(ctx)
}

// Run listens for SIGINT/SIGTERM. A second signal, or the shutdown timeout
// elapsing, forces the process out.
func (app *App) Run() error {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- app.RunWithContext(ctx) }()

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		zap.L().Info("signal received, shutting down", zap.String("signal", sig.String()), zap.Duration("timeout", app.shutdownTimeout))
		cancel()
	}

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		zap.L().Warn("second signal, forcing exit", zap.String("signal", sig.String()))
	case <-time.After(app.shutdownTimeout):
		zap.L().Warn("graceful shutdown timed out, forcing exit")
	}
	_ = zap.L().Sync()
	os.Exit(1)
	return nil
}

// RunWithContext starts components and blocks until ctx is done, then
// performs graceful shutdown.
func (app *App) RunWithContext(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
	defer cancel()
	app.lifecycleManager.StopAll(stopCtx)
	return nil
}

func (app *App) Shutdown(ctx context.Context) {
	app.lifecycleManager.StopAll(ctx)
}
