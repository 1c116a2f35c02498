package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeComponent struct {
	*BaseComponent
	startErr error
	log      *[]string
}

func newFake(name string, log *[]string, deps ...string) *fakeComponent {
	return &fakeComponent{BaseComponent: NewBaseComponent(name, deps...), log: log}
}

func (f *fakeComponent) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.log = append(*f.log, "start:"+f.Name())
	return f.BaseComponent.Start(ctx)
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	*f.log = append(*f.log, "stop:"+f.Name())
	return f.BaseComponent.Stop(ctx)
}

func names(list []Component) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Name())
	}
	return out
}

func TestContainerRegisterResolve(t *testing.T) {
	c := NewContainer()
	var log []string
	if err := c.Register("a", newFake("a", &log)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Register("a", newFake("a", &log)); err == nil {
		t.Fatalf("duplicate register should fail")
	}
	if err := c.Register("nil", nil); err == nil {
		t.Fatalf("nil component should be rejected")
	}
	if _, err := c.Resolve("missing"); !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("want ErrComponentNotFound, got %v", err)
	}
	if !c.Has("a") || c.Has("b") {
		t.Fatalf("Has mismatch")
	}
}

func TestSortComponentsByDependencies(t *testing.T) {
	c := NewContainer()
	var log []string
	_ = c.Register("http_server", newFake("http_server", &log, "logging", Optional("redis"), Optional("prometheus")))
	_ = c.Register("redis", newFake("redis", &log, "logging", Optional("prometheus")))
	_ = c.Register("logging", newFake("logging", &log))

	sorted, err := c.SortComponentsByDependencies()
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	got := strings.Join(names(sorted), ",")
	if got != "logging,redis,http_server" {
		t.Fatalf("order = %s", got)
	}
}

func TestSortMissingRequiredDependency(t *testing.T) {
	c := NewContainer()
	var log []string
	_ = c.Register("redis", newFake("redis", &log, "logging"))
	if _, err := c.SortComponentsByDependencies(); !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("want ErrComponentNotFound, got %v", err)
	}
	if _, err := c.ValidateDependencies(); err == nil || !strings.Contains(err.Error(), "redis -> [logging]") {
		t.Fatalf("validate error = %v", err)
	}
}

func TestSortCycle(t *testing.T) {
	c := NewContainer()
	var log []string
	_ = c.Register("a", newFake("a", &log, "b"))
	_ = c.Register("b", newFake("b", &log, "a"))
	if _, err := c.SortComponentsByDependencies(); err == nil || !strings.Contains(err.Error(), "circular") {
		t.Fatalf("want circular dependency error, got %v", err)
	}
}

func TestParseDependency(t *testing.T) {
	name, optional := ParseDependency(Optional("redis"))
	if name != "redis" || !optional {
		t.Fatalf("got %q %v", name, optional)
	}
	name, optional = ParseDependency("logging")
	if name != "logging" || optional {
		t.Fatalf("got %q %v", name, optional)
	}
}

func TestReplace(t *testing.T) {
	c := NewContainer()
	var log []string
	a := newFake("a", &log)
	_ = c.Register("a", a)
	if err := c.Replace("a", newFake("a", &log)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	b := newFake("b", &log)
	_ = c.Register("b", b)
	_ = b.Start(context.Background())
	if err := c.Replace("b", newFake("b", &log)); err == nil {
		t.Fatalf("replacing an active component should fail")
	}
	if err := c.Replace("zzz", a); !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("want ErrComponentNotFound, got %v", err)
	}
}
