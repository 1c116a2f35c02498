package redisapp_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/http_server"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/config"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/internal/api"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/redistest"
)

func quietLogging() *logging.LoggingConfig {
	return &logging.LoggingConfig{Enabled: true, Level: "error", Format: "console", Output: "stderr"}
}

func TestAppServesRegistryOverHTTP(t *testing.T) {
	api.Register()
	mr, _ := redistest.NewMiniredis(t)

	app := redisapp.NewAppWithConfig(&config.AppConfig{
		APPInfo: &config.APPInfo{APPName: "redisapp-test", ENV: consts.ENV_TEST},
		Logging: quietLogging(),
		HTTPServer: &http_server.HTTPServerConfig{
			Enabled:      true,
			Address:      "127.0.0.1:0",
			EnableHealth: true,
		},
		Redis: &redis.RegistryConfig{
			Enabled:      true,
			VerifyOnBoot: true,
			Clients: map[string]*redis.ClientConfig{
				"cache": {URL: "redis://" + mr.Addr() + "/0"},
			},
		},
	})

	reg, err := app.Redis()
	require.NoError(t, err)
	scripted := redistest.NewClient()
	scripted.Prepare(redistest.BulkString("from-stub"))
	require.NoError(t, reg.Use("fake", redistest.Stub(scripted)))

	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Shutdown(ctx)
	})

	// a single configured client becomes the default
	require.NoError(t, mr.Set("k", "real"))
	c, err := reg.Client(context.Background(), redis.DefaultID)
	require.NoError(t, err)
	v, err := redis.SendAs[string](context.Background(), c, "GET", "k")
	require.NoError(t, err)
	assert.Equal(t, "real", v)

	comp, err := app.GetComponent(consts.COMPONENT_HTTP_SERVER)
	require.NoError(t, err)
	base := "http://" + comp.(*http_server.HTTPServerComponent).Addr()

	resp, err := http.Get(base + "/kv/fake/anything")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"key":"anything","value":"from-stub"}`, string(body))

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// sealed once started
	assert.ErrorIs(t, reg.Use("late", redistest.Stub(redistest.NewClient())), redis.ErrRegistrySealed)
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	app := redisapp.NewAppWithConfig(&config.AppConfig{APPInfo: &config.APPInfo{ENV: consts.ENV_TEST}})
	_, err := app.Redis()
	assert.ErrorContains(t, err, "app_name")
	// boot runs once and keeps its error
	assert.ErrorContains(t, app.Start(context.Background()), "app_name")
}

func TestAppWithoutRedisSection(t *testing.T) {
	app := redisapp.NewAppWithConfig(&config.AppConfig{
		APPInfo: &config.APPInfo{APPName: "bare", ENV: consts.ENV_TEST},
		Logging: quietLogging(),
	})
	_, err := app.Redis()
	assert.Error(t, err)
}

func TestAppLoadsConfigFile(t *testing.T) {
	mr, _ := redistest.NewMiniredis(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_info:
  app_name: from-file
logging:
  enabled: true
  level: error
  output: stderr
redis:
  enabled: true
  default: main
  clients:
    main:
      addresses: ["`+mr.Addr()+`"]
      db: 2
`), 0o600))

	app := redisapp.NewApp(consts.ENV_TEST, path)
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() { app.Shutdown(context.Background()) })

	assert.Equal(t, consts.ENV_TEST, app.GetConfig().APPInfo.ENV)

	reg, err := app.Redis()
	require.NoError(t, err)
	c, err := reg.Client(context.Background(), "anything")
	require.NoError(t, err, "unknown identifiers fall back to the default")
	_, err = c.Send(context.Background(), "SET", "x", "1")
	require.NoError(t, err)

	mr.Select(2)
	mr.CheckGet(t, "x", "1")
}

type cacheSettings struct {
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
	Warm      bool          `yaml:"warm"`
}

func TestAppDecodesBizConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_info:
  app_name: with-biz
logging:
  enabled: true
  level: error
  output: stderr
biz_config:
  key_prefix: "orders:"
  ttl: 90s
`), 0o600))

	settings := &cacheSettings{Warm: true}
	app := redisapp.NewAppWithBiz(consts.ENV_TEST, path, settings)
	assert.Nil(t, app.BizConfig())

	require.NoError(t, app.Boot())
	assert.Same(t, settings, app.BizConfig())
	assert.Equal(t, "orders:", settings.KeyPrefix)
	assert.Equal(t, 90*time.Second, settings.TTL)
	assert.True(t, settings.Warm, "fields missing from the file keep their defaults")
}
