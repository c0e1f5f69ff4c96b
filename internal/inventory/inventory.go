// Package inventory owns the device and register-config repositories.
// Every other module reaches devices through this one.
package inventory

import (
	"context"
	"strconv"
	"time"

	"github.com/markus8006/plcfleet/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the Inventory plugin.
type Module struct {
	logger *zap.Logger
	store  *Store
	bus    plugin.EventBus
}

// New creates a new Inventory plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "inventory",
		Version:     "0.1.0",
		Description: "Device and register configuration repository",
		Roles:       []string{"repository"},
		APIVersion:  plugin.APIVersionCurrent,
		Required:    true,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	if err := deps.Store.Migrate(ctx, "inventory", migrations()); err != nil {
		return err
	}
	m.store = NewStore(deps.Store.DB())

	m.logger.Info("inventory module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("inventory module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("inventory module stopped")
	return nil
}

// Store exposes the repository for cross-module wiring.
func (m *Module) Store() *Store {
	return m.store
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/devices", Handler: m.handleListDevices},
		{Method: "POST", Path: "/devices", Handler: m.handleCreateDevice},
		{Method: "GET", Path: "/devices/{id}", Handler: m.handleGetDevice},
		{Method: "PUT", Path: "/devices/{id}", Handler: m.handleUpdateDevice},
		{Method: "DELETE", Path: "/devices/{id}", Handler: m.handleDeleteDevice},
		{Method: "GET", Path: "/devices/{id}/registers", Handler: m.handleListRegisters},
		{Method: "POST", Path: "/devices/{id}/registers", Handler: m.handleCreateRegister},
		{Method: "POST", Path: "/devices/{id}/registers/import", Handler: m.handleImportRegisters},
		{Method: "PUT", Path: "/registers/{id}", Handler: m.handleUpdateRegister},
		{Method: "DELETE", Path: "/registers/{id}", Handler: m.handleDeleteRegister},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	devices, err := m.store.List(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Message: err.Error()}
	}
	return plugin.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"devices": strconv.Itoa(len(devices)),
		},
	}
}

// publishEvent publishes an event to the event bus.
func (m *Module) publishEvent(ctx context.Context, topic string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:     topic,
		Source:    "inventory",
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
