// Package supervisor runs the polling engine: one poller per active
// device, batched Modbus reads, decoded values cached in memory and
// flushed to history.
package supervisor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/markus8006/plcfleet/internal/adapter"
	"github.com/markus8006/plcfleet/pkg/models"
	"github.com/markus8006/plcfleet/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the Supervisor plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	bus    plugin.EventBus

	source   RegisterSource
	sink     ReadingSink
	adapters *adapter.Registry
	journal  *adapter.Journal
	sup      *Supervisor

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a new Supervisor plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "supervisor",
		Version:      "0.1.0",
		Description:  "Per-device polling engine for industrial controllers",
		Roles:        []string{"polling"},
		APIVersion:   plugin.APIVersionCurrent,
		Dependencies: []string{"inventory", "history"},
	}
}

// SetInventory wires the device repository. Must be called before Start.
func (m *Module) SetInventory(source RegisterSource) {
	m.source = source
}

// SetHistory wires the reading sink. Must be called before Start.
func (m *Module) SetHistory(sink ReadingSink) {
	m.sink = sink
}

// PollDefaults returns the configured default polling interval and
// timeout in milliseconds. Valid after Init.
func (m *Module) PollDefaults() (intervalMs, timeoutMs int) {
	return m.cfg.DefaultIntervalMs, m.cfg.DefaultTimeoutMs
}

// Journal exposes the per-device log rings.
func (m *Module) Journal() *adapter.Journal {
	return m.journal
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if v := deps.Config.GetInt("default_interval_ms"); v > 0 {
			m.cfg.DefaultIntervalMs = v
		}
		if v := deps.Config.GetInt("default_timeout_ms"); v > 0 {
			m.cfg.DefaultTimeoutMs = v
		}
		if d := deps.Config.GetDuration("tick"); d > 0 {
			m.cfg.Tick = d
		}
		if d := deps.Config.GetDuration("idle_backoff"); d > 0 {
			m.cfg.IdleBackoff = d
		}
		if d := deps.Config.GetDuration("reconnect_backoff"); d > 0 {
			m.cfg.ReconnectBackoff = d
		}
		if d := deps.Config.GetDuration("stop_grace"); d > 0 {
			m.cfg.StopGrace = d
		}
		if d := deps.Config.GetDuration("shutdown_deadline"); d > 0 {
			m.cfg.ShutdownDeadline = d
		}
		if d := deps.Config.GetDuration("supervisor_tick"); d > 0 {
			m.cfg.SupervisorTick = d
		}
	}

	m.journal = adapter.NewJournal()
	pool := adapter.NewClientPool()

	m.adapters = adapter.NewRegistry()
	m.adapters.Register(models.ProtocolModbusTCP, func() adapter.Adapter {
		return adapter.NewModbusAdapter(pool, m.journal)
	})
	for _, p := range []models.Protocol{models.ProtocolS7TCP, models.ProtocolEthernetIP, models.ProtocolOPCUA} {
		proto := p
		m.adapters.Register(proto, func() adapter.Adapter {
			return adapter.NewStubAdapter(proto, m.journal)
		})
	}
	m.adapters.Seal()

	m.logger.Info("supervisor module initialized",
		zap.Duration("tick", m.cfg.Tick),
		zap.Duration("idle_backoff", m.cfg.IdleBackoff))
	return nil
}

func (m *Module) Start(_ context.Context) error {
	if m.source == nil || m.sink == nil {
		return &models.ConfigError{Field: "wiring", Detail: "supervisor requires inventory and history"}
	}

	m.sup = NewSupervisor(m.source, m.sink, m.adapters, m.journal, m.cfg, m.logger, m.publishState)
	m.sup.OnFlush(m.publishFlush)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.runSweep(ctx)

	m.logger.Info("supervisor module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.sup != nil {
		m.sup.StopAll(ctx)
	}
	m.logger.Info("supervisor module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.sup == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "not started"}
	}
	statuses := m.sup.Statuses()
	var connected int
	for _, s := range statuses {
		if s.State == StateConnected {
			connected++
		}
	}
	return plugin.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"pollers":   strconv.Itoa(len(statuses)),
			"connected": strconv.Itoa(connected),
		},
	}
}

// runSweep restarts dead pollers and picks up newly activated devices.
func (m *Module) runSweep(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SupervisorTick)
	defer ticker.Stop()

	// Initial sweep brings up pollers for devices already active.
	m.sup.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sup.Sweep(ctx)
		}
	}
}

// publishFlush announces each persisted reading batch on the bus.
func (m *Module) publishFlush(deviceID int64, count int) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(context.Background(), plugin.Event{
		Topic:     TopicReadingFlushed,
		Source:    "supervisor",
		Timestamp: time.Now(),
		Payload:   ReadingFlushedEvent{DeviceID: deviceID, Count: count},
	})
}

// publishState forwards poller state transitions to the event bus.
func (m *Module) publishState(deviceID int64, ip string, state State) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(context.Background(), plugin.Event{
		Topic:     TopicPollerState,
		Source:    "supervisor",
		Timestamp: time.Now(),
		Payload: PollerStateEvent{
			DeviceID: deviceID,
			IP:       ip,
			State:    string(state),
		},
	})
}
