// Package discovery finds industrial devices on the local networks.
// A run walks passive ARP sniffing, an active ARP sweep, the system
// ARP cache, an ICMP sweep, a TCP port probe, optional nmap service
// detection and SNMP enrichment, then classifies the merged hosts and
// imports candidates into the inventory.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

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

// Module implements the Discovery plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	bus    plugin.EventBus

	store  DeviceStore
	runLog *models.LogRing

	mu         sync.Mutex
	running    bool
	cancelRun  context.CancelFunc
	lastResult *RunResult
	lastStats  ImportStats

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a new Discovery plugin instance.
func New() *Module {
	return &Module{runLog: models.NewLogRing(models.DefaultLogRingCap)}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "discovery",
		Version:      "0.1.0",
		Description:  "Network discovery for industrial controllers",
		Roles:        []string{"discovery"},
		APIVersion:   plugin.APIVersionCurrent,
		Dependencies: []string{"inventory"},
	}
}

// SetInventory wires the device repository. Must be called before Start.
func (m *Module) SetInventory(store DeviceStore) {
	m.store = store
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if deps.Config.IsSet("deep_scan") {
			m.cfg.DeepScan = deps.Config.GetBool("deep_scan")
		}
		if v := deps.Config.GetInt("deep_scan_timeout_s"); v > 0 {
			m.cfg.DeepScanHostTimeout = time.Duration(v) * time.Second
		}
		if v := deps.Config.GetInt("max_workers"); v > 0 {
			m.cfg.MaxWorkers = v
		}
		if v := deps.Config.GetInt("workers_per_interface"); v > 0 {
			m.cfg.WorkersPerInterface = v
		}
		if d := deps.Config.GetDuration("passive_base"); d > 0 {
			m.cfg.PassiveBase = d
		}
		if d := deps.Config.GetDuration("arp_timeout"); d > 0 {
			m.cfg.ARPTimeout = d
		}
		if s := deps.Config.GetString("result_file"); s != "" {
			m.cfg.ResultFile = s
		}
		if d := deps.Config.GetDuration("schedule"); d > 0 {
			m.cfg.Schedule = d
		}
		if s := deps.Config.GetString("snmp_community"); s != "" {
			m.cfg.SNMPCommunity = s
		}
		if deps.Config.IsSet("auto_activate") {
			m.cfg.AutoActivate = deps.Config.GetBool("auto_activate")
		}
		if deps.Config.IsSet("overwrite") {
			m.cfg.Overwrite = deps.Config.GetBool("overwrite")
		}
	}

	m.logger.Info("discovery module initialized",
		zap.Bool("deep_scan", m.cfg.DeepScan),
		zap.Duration("schedule", m.cfg.Schedule),
		zap.String("result_file", m.cfg.ResultFile))
	return nil
}

func (m *Module) Start(_ context.Context) error {
	// A previous run's result survives restarts via the result file.
	if result, err := ReadResultFile(m.cfg.ResultFile); err == nil {
		m.mu.Lock()
		m.lastResult = result
		m.mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	if m.cfg.Schedule > 0 {
		m.wg.Add(1)
		go m.runSchedule(ctx)
	}

	m.logger.Info("discovery module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	if m.cancelRun != nil {
		m.cancelRun()
	}
	m.mu.Unlock()
	m.wg.Wait()
	m.logger.Info("discovery module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	details := map[string]string{
		"running": strconv.FormatBool(m.running),
	}
	if m.lastResult != nil {
		details["last_run"] = m.lastResult.RunID
		details["hosts"] = strconv.Itoa(len(m.lastResult.Hosts))
		details["candidates"] = strconv.Itoa(len(m.lastResult.Candidates))
	}
	return plugin.HealthStatus{Status: "ok", Details: details}
}

func (m *Module) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunOptions narrows one run relative to the module configuration.
// Nil pointer fields fall back to the configured value.
type RunOptions struct {
	Interfaces        []string `json:"interfaces"`
	AutoActivate      *bool    `json:"auto_activate"`
	OverwriteExisting *bool    `json:"overwrite_existing"`
}

func (o RunOptions) apply(cfg Config) Config {
	if len(o.Interfaces) > 0 {
		cfg.Interfaces = o.Interfaces
	}
	if o.AutoActivate != nil {
		cfg.AutoActivate = *o.AutoActivate
	}
	if o.OverwriteExisting != nil {
		cfg.Overwrite = *o.OverwriteExisting
	}
	return cfg
}

// startRun launches a discovery run unless one is already active.
func (m *Module) startRun(runID string, opts RunOptions) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancelRun = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.execute(runCtx, runID, opts)
	}()
	return true
}

// execute performs one complete discovery pass.
func (m *Module) execute(ctx context.Context, runID string, opts RunOptions) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.cancelRun = nil
		m.mu.Unlock()
	}()

	cfg := opts.apply(m.cfg)

	m.publish(TopicRunStarted, RunEvent{RunID: runID})
	m.runLog.Append("info", "run "+runID+" started")

	pipeline := NewPipeline(cfg, m.logger.Named("pipeline"), func(phase, detail string) {
		m.publish(TopicRunProgress, RunEvent{RunID: runID, Phase: phase, Detail: detail})
		m.runLog.Append("info", phase+": "+detail)
	})
	result := pipeline.Run(ctx, runID)

	if err := WriteResultFile(cfg.ResultFile, result); err != nil {
		m.logger.Error("failed to persist discovery result", zap.Error(err))
		result.Partial = true
		result.Errors = append(result.Errors, "result file: "+err.Error())
		m.runLog.Append("error", "result file: "+err.Error())
	}

	var stats ImportStats
	if m.store != nil {
		importer := NewImporter(m.store, cfg.AutoActivate, cfg.Overwrite, m.logger.Named("import"))
		stats = importer.Import(ctx, result.Candidates)
		for _, h := range result.Candidates {
			ev := DeviceFoundEvent{IP: h.IP, MAC: h.MAC}
			if h.Industrial != nil {
				ev.Type = h.Industrial.Type
				ev.Confidence = h.Industrial.Confidence
			}
			m.publish(TopicDeviceFound, ev)
		}
	}

	m.mu.Lock()
	m.lastResult = result
	m.lastStats = stats
	m.mu.Unlock()

	m.publish(TopicRunCompleted, RunEvent{
		RunID:      runID,
		Hosts:      len(result.Hosts),
		Candidates: len(result.Candidates),
		Partial:    result.Partial,
	})
	m.runLog.Append("info", fmt.Sprintf("run %s completed: %d hosts, %d candidates, %d imported",
		runID, len(result.Hosts), len(result.Candidates), stats.Saved+stats.Updated))
}

// runSchedule triggers periodic discovery runs.
func (m *Module) runSchedule(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Schedule)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runID := newRunID()
			if !m.startRun(runID, RunOptions{}) {
				m.logger.Debug("scheduled run skipped, previous run still active")
			}
		}
	}
}

func (m *Module) publish(topic string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(context.Background(), plugin.Event{
		Topic:     topic,
		Source:    "discovery",
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
