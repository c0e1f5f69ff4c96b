package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestSub_scopes_plugin_config(t *testing.T) {
	v := viper.New()
	v.Set("plugins.supervisor.tick", "500ms")
	v.Set("plugins.supervisor.default_interval_ms", 1000)
	v.Set("plugins.history.retention_days", 30)

	cfg := New(v)
	sup := cfg.Sub("plugins.supervisor")

	if got := sup.GetDuration("tick"); got != 500*time.Millisecond {
		t.Errorf("tick = %v, want 500ms", got)
	}
	if got := sup.GetInt("default_interval_ms"); got != 1000 {
		t.Errorf("default_interval_ms = %d, want 1000", got)
	}
	if sup.IsSet("retention_days") {
		t.Error("supervisor subtree should not see history keys")
	}
}

func TestSub_missing_key_returns_empty(t *testing.T) {
	cfg := New(viper.New())
	sub := cfg.Sub("plugins.nonexistent")
	if sub == nil {
		t.Fatal("Sub must never return nil")
	}
	if sub.IsSet("anything") {
		t.Error("empty subtree should have no keys")
	}
	if got := sub.GetInt("workers"); got != 0 {
		t.Errorf("missing int = %d, want zero value", got)
	}
}

func TestNew_nil_viper(t *testing.T) {
	cfg := New(nil)
	if cfg.GetString("whatever") != "" {
		t.Error("nil-backed config should return zero values")
	}
}
