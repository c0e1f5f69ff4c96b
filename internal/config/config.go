// Package config adapts Viper to the plugin.Config interface and
// builds the process logger from the logging settings.
package config

import (
	"time"

	"github.com/markus8006/plcfleet/pkg/plugin"
	"github.com/spf13/viper"
)

var _ plugin.Config = (*ViperConfig)(nil)

// ViperConfig exposes a Viper tree through plugin.Config so modules
// never import Viper directly.
type ViperConfig struct {
	v *viper.Viper
}

// New wraps a Viper instance. A nil instance yields an empty config,
// which lets modules fall back to their defaults.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

// Sub returns the subtree under key. A missing key returns an empty
// config, never nil.
func (c *ViperConfig) Sub(key string) plugin.Config {
	return New(c.v.Sub(key))
}

func (c *ViperConfig) Unmarshal(target any) error { return c.v.Unmarshal(target) }

func (c *ViperConfig) Get(key string) any { return c.v.Get(key) }

func (c *ViperConfig) GetString(key string) string { return c.v.GetString(key) }

func (c *ViperConfig) GetInt(key string) int { return c.v.GetInt(key) }

func (c *ViperConfig) GetBool(key string) bool { return c.v.GetBool(key) }

func (c *ViperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }

func (c *ViperConfig) IsSet(key string) bool { return c.v.IsSet(key) }

// Viper exposes the underlying instance for the composition root,
// which reads top-level keys like server.port directly.
func (c *ViperConfig) Viper() *viper.Viper { return c.v }
