package inventory

import (
	"path/filepath"
	"testing"

	"github.com/markus8006/plcfleet/internal/store"
	"github.com/markus8006/plcfleet/pkg/plugin"
	"github.com/markus8006/plcfleet/pkg/plugin/plugintest"
	"go.uber.org/zap"
)

func TestPluginContract(t *testing.T) {
	plugintest.TestPluginContract(t,
		func() plugin.Plugin { return New() },
		func(name string) plugin.Dependencies {
			db, err := store.New(filepath.Join(t.TempDir(), "contract.db"))
			if err != nil {
				t.Fatalf("open store: %v", err)
			}
			t.Cleanup(func() { db.Close() })
			return plugin.Dependencies{
				Logger: zap.NewNop().Named(name),
				Store:  db,
			}
		})
}
