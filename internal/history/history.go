// Package history stores time-series readings produced by the pollers
// and enforces the retention window.
package history

import (
	"context"
	"strconv"
	"sync"
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

const (
	defaultRetentionDays = 30
	retentionInterval    = 24 * time.Hour
	// First prune runs shortly after start so a long-stopped instance
	// catches up without waiting a day.
	retentionInitialDelay = time.Minute
)

// Module implements the History plugin.
type Module struct {
	logger        *zap.Logger
	store         *Store
	bus           plugin.EventBus
	retentionDays int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a new History plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "history",
		Version:      "0.1.0",
		Description:  "Time-series reading storage and retention",
		Roles:        []string{"repository"},
		APIVersion:   plugin.APIVersionCurrent,
		Dependencies: []string{"inventory"},
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.retentionDays = defaultRetentionDays
	if deps.Config != nil {
		if v := deps.Config.GetInt("retention_days"); v > 0 {
			m.retentionDays = v
		}
	}

	if err := deps.Store.Migrate(ctx, "history", migrations()); err != nil {
		return err
	}
	m.store = NewStore(deps.Store.DB())

	m.logger.Info("history module initialized",
		zap.Int("retention_days", m.retentionDays))
	return nil
}

func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.runRetention(ctx)

	m.logger.Info("history module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("history module stopped")
	return nil
}

// Store exposes the repository for cross-module wiring.
func (m *Module) Store() *Store {
	return m.store
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/registers/{id}/latest", Handler: m.handleLatest},
		{Method: "GET", Path: "/registers/{id}/readings", Handler: m.handleRange},
		{Method: "GET", Path: "/registers/{id}/aggregate", Handler: m.handleAggregate},
		{Method: "GET", Path: "/devices/{id}/latest", Handler: m.handleDeviceLatest},
	}
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	n, err := m.store.Count(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Message: err.Error()}
	}
	return plugin.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"readings":       strconv.FormatInt(n, 10),
			"retention_days": strconv.Itoa(m.retentionDays),
		},
	}
}

// runRetention prunes readings older than the retention window.
func (m *Module) runRetention(ctx context.Context) {
	defer m.wg.Done()

	timer := time.NewTimer(retentionInitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.pruneOnce(ctx)
			timer.Reset(retentionInterval)
		}
	}
}

func (m *Module) pruneOnce(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -m.retentionDays)
	n, err := m.store.PruneBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error("retention prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("retention prune completed",
			zap.Int64("removed", n),
			zap.Time("cutoff", cutoff))
	}
}
