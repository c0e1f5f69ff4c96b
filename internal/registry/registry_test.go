package registry

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/markus8006/plcfleet/pkg/plugin"
	"go.uber.org/zap"
)

// fakePlugin is a configurable plugin for lifecycle tests.
type fakePlugin struct {
	info     plugin.PluginInfo
	initErr  error
	startErr error
	stopErr  error
	cfgErr   error
	routes   []plugin.Route

	inits, starts, stops int
}

func (f *fakePlugin) Info() plugin.PluginInfo { return f.info }

func (f *fakePlugin) Init(context.Context, plugin.Dependencies) error {
	f.inits++
	return f.initErr
}

func (f *fakePlugin) Start(context.Context) error {
	f.starts++
	return f.startErr
}

func (f *fakePlugin) Stop(context.Context) error {
	f.stops++
	return f.stopErr
}

func (f *fakePlugin) ValidateConfig() error { return f.cfgErr }

func (f *fakePlugin) Routes() []plugin.Route { return f.routes }

func newFake(name string, deps ...string) *fakePlugin {
	return &fakePlugin{info: plugin.PluginInfo{
		Name:         name,
		Version:      "0.1.0",
		APIVersion:   plugin.APIVersionCurrent,
		Dependencies: deps,
	}}
}

func newRegistry() *Registry {
	return New(zap.NewNop())
}

func noDeps(string) plugin.Dependencies {
	return plugin.Dependencies{Logger: zap.NewNop()}
}

func TestRegister_duplicate_name(t *testing.T) {
	reg := newRegistry()
	if err := reg.Register(newFake("inventory")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := reg.Register(newFake("inventory")); err == nil {
		t.Error("expected error on duplicate name")
	}
}

func TestRegister_empty_name(t *testing.T) {
	reg := newRegistry()
	if err := reg.Register(&fakePlugin{}); err == nil {
		t.Error("expected error on empty name")
	}
}

func TestValidate_orders_by_dependency(t *testing.T) {
	reg := newRegistry()
	sup := newFake("supervisor", "inventory", "history")
	hist := newFake("history", "inventory")
	inv := newFake("inventory")
	for _, p := range []plugin.Plugin{sup, hist, inv} {
		if err := reg.Register(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	pos := map[string]int{}
	for i, p := range reg.All() {
		pos[p.Info().Name] = i
	}
	if pos["inventory"] > pos["history"] || pos["history"] > pos["supervisor"] {
		t.Errorf("start order wrong: %v", pos)
	}
}

func TestValidate_missing_dependency(t *testing.T) {
	t.Run("optional_disabled", func(t *testing.T) {
		reg := newRegistry()
		reg.Register(newFake("discovery", "inventory"))
		if err := reg.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if !reg.IsDisabled("discovery") {
			t.Error("optional plugin with missing dep should be disabled")
		}
	})

	t.Run("required_fails", func(t *testing.T) {
		reg := newRegistry()
		p := newFake("supervisor", "inventory")
		p.info.Required = true
		reg.Register(p)
		if err := reg.Validate(); err == nil {
			t.Error("required plugin with missing dep should fail validation")
		}
	})
}

func TestValidate_cycle(t *testing.T) {
	reg := newRegistry()
	reg.Register(newFake("a", "b"))
	reg.Register(newFake("b", "a"))
	if err := reg.Validate(); err == nil {
		t.Error("expected cycle error")
	}
}

func TestValidate_cascade_disable(t *testing.T) {
	reg := newRegistry()
	bad := newFake("inventory")
	bad.info.APIVersion = plugin.APIVersionCurrent + 1
	reg.Register(bad)
	reg.Register(newFake("history", "inventory"))
	reg.Register(newFake("supervisor", "history"))

	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, name := range []string{"inventory", "history", "supervisor"} {
		if !reg.IsDisabled(name) {
			t.Errorf("%s should be disabled by cascade", name)
		}
	}
}

func TestValidate_api_version_out_of_range(t *testing.T) {
	reg := newRegistry()
	p := newFake("future")
	p.info.APIVersion = plugin.APIVersionCurrent + 1
	p.info.Required = true
	reg.Register(p)
	if err := reg.Validate(); err == nil {
		t.Error("required plugin with unsupported API version should fail")
	}
}

func TestInitAll_optional_failure_disables(t *testing.T) {
	reg := newRegistry()
	bad := newFake("discovery")
	bad.initErr = errors.New("no interfaces")
	good := newFake("inventory")
	reg.Register(bad)
	reg.Register(good)
	if err := reg.Validate(); err != nil {
		t.Fatal(err)
	}

	if err := reg.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if !reg.IsDisabled("discovery") {
		t.Error("failing optional plugin should be disabled")
	}
	if reg.IsDisabled("inventory") {
		t.Error("healthy plugin should stay active")
	}
}

func TestInitAll_required_failure_aborts(t *testing.T) {
	reg := newRegistry()
	bad := newFake("inventory")
	bad.info.Required = true
	bad.initErr = errors.New("db locked")
	reg.Register(bad)
	if err := reg.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := reg.InitAll(context.Background(), noDeps); err == nil {
		t.Error("required plugin init failure should abort")
	}
}

func TestInitAll_runs_config_validator(t *testing.T) {
	reg := newRegistry()
	p := newFake("history")
	p.cfgErr = errors.New("retention_days must be positive")
	reg.Register(p)
	if err := reg.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := reg.InitAll(context.Background(), noDeps); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if !reg.IsDisabled("history") {
		t.Error("plugin with invalid config should be disabled")
	}
}

func TestStartAll_skips_disabled(t *testing.T) {
	reg := newRegistry()
	bad := newFake("discovery")
	bad.initErr = errors.New("boom")
	good := newFake("inventory")
	reg.Register(bad)
	reg.Register(good)
	reg.Validate()
	reg.InitAll(context.Background(), noDeps)

	if err := reg.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if bad.starts != 0 {
		t.Error("disabled plugin should not start")
	}
	if good.starts != 1 {
		t.Errorf("active plugin starts = %d, want 1", good.starts)
	}
}

func TestStopAll_visits_every_plugin(t *testing.T) {
	reg := newRegistry()
	inv := newFake("inventory")
	sup := newFake("supervisor", "inventory")
	sup.stopErr = errors.New("pollers hung")
	reg.Register(inv)
	reg.Register(sup)
	reg.Validate()
	reg.InitAll(context.Background(), noDeps)
	reg.StartAll(context.Background())

	reg.StopAll(context.Background())
	if sup.stops != 1 || inv.stops != 1 {
		t.Errorf("stops = supervisor %d, inventory %d; want 1 each", sup.stops, inv.stops)
	}
}

func TestGet_and_Resolve(t *testing.T) {
	reg := newRegistry()
	reg.Register(newFake("inventory"))
	reg.Validate()

	if _, ok := reg.Get("inventory"); !ok {
		t.Error("Get should find registered plugin")
	}
	if _, ok := reg.Resolve("inventory"); !ok {
		t.Error("Resolve should find registered plugin")
	}
	if _, ok := reg.Get("ghost"); ok {
		t.Error("Get should miss unknown plugin")
	}
}

func TestGet_disabled_plugin_hidden(t *testing.T) {
	reg := newRegistry()
	p := newFake("discovery", "inventory")
	reg.Register(p)
	reg.Validate()

	if _, ok := reg.Get("discovery"); ok {
		t.Error("disabled plugin should not resolve")
	}
}

func TestResolveByRole(t *testing.T) {
	reg := newRegistry()
	inv := newFake("inventory")
	inv.info.Roles = []string{"repository"}
	hist := newFake("history")
	hist.info.Roles = []string{"repository"}
	sup := newFake("supervisor")
	sup.info.Roles = []string{"polling"}
	for _, p := range []plugin.Plugin{inv, hist, sup} {
		reg.Register(p)
	}
	reg.Validate()

	repos := reg.ResolveByRole("repository")
	if len(repos) != 2 {
		t.Errorf("repository role matched %d plugins, want 2", len(repos))
	}
	if got := reg.ResolveByRole("nothing"); len(got) != 0 {
		t.Errorf("unknown role matched %d plugins", len(got))
	}
}

func TestAllRoutes_only_http_providers(t *testing.T) {
	reg := newRegistry()
	withRoutes := newFake("inventory")
	withRoutes.routes = []plugin.Route{
		{Method: "GET", Path: "/devices", Handler: func(http.ResponseWriter, *http.Request) {}},
	}
	bare := newFake("history")
	reg.Register(withRoutes)
	reg.Register(bare)
	reg.Validate()

	routes := reg.AllRoutes()
	if len(routes["inventory"]) != 1 {
		t.Errorf("inventory routes = %d, want 1", len(routes["inventory"]))
	}
	if _, ok := routes["history"]; ok {
		t.Error("plugin with no routes should not appear")
	}
}
