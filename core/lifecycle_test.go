package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/hooks"
)

func TestLifecycleStartStopOrder(t *testing.T) {
	c := NewContainer()
	var log []string
	_ = c.Register("http_server", newFake("http_server", &log, "redis"))
	_ = c.Register("redis", newFake("redis", &log, "logging"))
	_ = c.Register("logging", newFake("logging", &log))

	lm := NewLifecycleManager(c)
	_ = lm.AddHook("before", hooks.BeforeStart, func(context.Context) error {
		log = append(log, "hook:before_start")
		return nil
	}, 1)
	_ = lm.AddHook("after", hooks.AfterShutdown, func(context.Context) error {
		log = append(log, "hook:after_shutdown")
		return nil
	}, 1)

	if err := lm.StartAll(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	lm.StopAll(context.Background())
	lm.StopAll(context.Background()) // second call is a no-op

	want := "hook:before_start,start:logging,start:redis,start:http_server,stop:http_server,stop:redis,stop:logging,hook:after_shutdown"
	if got := strings.Join(log, ","); got != want {
		t.Fatalf("log =\n%s\nwant\n%s", got, want)
	}
}

func TestLifecycleRollbackOnFailure(t *testing.T) {
	c := NewContainer()
	var log []string
	_ = c.Register("logging", newFake("logging", &log))
	failing := newFake("redis", &log, "logging")
	failing.startErr = errors.New("dial refused")
	_ = c.Register("redis", failing)

	lm := NewLifecycleManager(c)
	err := lm.StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("want start error naming redis, got %v", err)
	}
	if got := strings.Join(log, ","); got != "start:logging,stop:logging" {
		t.Fatalf("log = %s", got)
	}
}

func TestLifecycleBeforeStartHookAborts(t *testing.T) {
	c := NewContainer()
	var log []string
	_ = c.Register("logging", newFake("logging", &log))

	lm := NewLifecycleManager(c)
	_ = lm.AddHook("deny", hooks.BeforeStart, func(context.Context) error { return errors.New("no") }, 1)
	if err := lm.StartAll(context.Background()); err == nil {
		t.Fatalf("want hook error")
	}
	if len(log) != 0 {
		t.Fatalf("no component should start, log = %v", log)
	}
}
