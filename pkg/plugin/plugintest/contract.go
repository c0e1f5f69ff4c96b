// Package plugintest holds the behavioral contract every module must
// satisfy, so each module's tests exercise the same lifecycle rules.
package plugintest

import (
	"context"
	"testing"

	"github.com/markus8006/plcfleet/pkg/plugin"
	"go.uber.org/zap"
)

// TestPluginContract verifies a plugin.Plugin implementation against
// the lifecycle contract. Call it from the module's own test file:
//
//	func TestPluginContract(t *testing.T) {
//	    plugintest.TestPluginContract(t, func() plugin.Plugin { return New() }, nil)
//	}
//
// factory must return a fresh instance per call. depsFactory builds the
// Dependencies handed to Init; nil gets a logger-only default, modules
// that migrate a schema during Init must supply a real store.
func TestPluginContract(t *testing.T, factory func() plugin.Plugin, depsFactory func(name string) plugin.Dependencies) {
	t.Helper()

	if depsFactory == nil {
		depsFactory = func(name string) plugin.Dependencies {
			return plugin.Dependencies{Logger: zap.NewNop().Named(name)}
		}
	}

	initialized := func(t *testing.T) plugin.Plugin {
		t.Helper()
		p := factory()
		if err := p.Init(context.Background(), depsFactory(p.Info().Name)); err != nil {
			t.Fatalf("Init: %v", err)
		}
		return p
	}

	t.Run("Info_returns_valid_metadata", func(t *testing.T) {
		info := factory().Info()
		if info.Name == "" {
			t.Error("Name must not be empty")
		}
		if info.Version == "" {
			t.Error("Version must not be empty")
		}
		if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
			t.Errorf("APIVersion = %d, outside [%d, %d]",
				info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
		}
	})

	t.Run("Info_is_idempotent", func(t *testing.T) {
		p := factory()
		if a, b := p.Info(), p.Info(); a.Name != b.Name || a.Version != b.Version {
			t.Error("Info must return consistent results")
		}
	})

	t.Run("Init_succeeds_with_valid_deps", func(t *testing.T) {
		initialized(t)
	})

	t.Run("full_lifecycle", func(t *testing.T) {
		p := initialized(t)
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := p.Stop(context.Background()); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	})

	t.Run("Stop_without_Start_does_not_panic", func(t *testing.T) {
		p := initialized(t)
		if err := p.Stop(context.Background()); err != nil {
			t.Fatalf("Stop before Start: %v", err)
		}
	})
}
