package supervisor

import (
	"testing"

	"github.com/markus8006/plcfleet/pkg/plugin"
	"github.com/markus8006/plcfleet/pkg/plugin/plugintest"
	"go.uber.org/zap"
)

func TestPluginContract(t *testing.T) {
	plugintest.TestPluginContract(t,
		func() plugin.Plugin {
			// Start refuses to run unwired, so the contract factory
			// supplies the repository fakes up front.
			m := New()
			m.SetInventory(&fakeSource{})
			m.SetHistory(&fakeSink{})
			return m
		},
		func(name string) plugin.Dependencies {
			return plugin.Dependencies{Logger: zap.NewNop().Named(name)}
		})
}
