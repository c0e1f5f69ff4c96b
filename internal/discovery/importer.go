package discovery

import (
	"context"
	"strings"

	"github.com/markus8006/plcfleet/internal/inventory"
	"github.com/markus8006/plcfleet/pkg/models"
	"go.uber.org/zap"
)

// DeviceStore is the inventory surface discovery needs: upserting
// classified hosts and listing what earlier runs produced.
type DeviceStore interface {
	UpsertDiscovered(ctx context.Context, d *models.Device, overwrite bool) (inventory.UpsertOutcome, error)
	ListDiscovered(ctx context.Context) ([]models.Device, error)
}

// ImportStats summarizes one import pass.
type ImportStats struct {
	Saved   int `json:"saved"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Importer turns discovery candidates into inventory devices.
type Importer struct {
	store        DeviceStore
	autoActivate bool
	overwrite    bool
	logger       *zap.Logger
}

// NewImporter creates an importer.
func NewImporter(store DeviceStore, autoActivate, overwrite bool, logger *zap.Logger) *Importer {
	return &Importer{
		store:        store,
		autoActivate: autoActivate,
		overwrite:    overwrite,
		logger:       logger,
	}
}

// Import upserts every candidate host into the inventory and reports
// per-host outcomes. Individual failures never abort the pass.
func (im *Importer) Import(ctx context.Context, hosts []*models.DiscoveredHost) ImportStats {
	var stats ImportStats
	for _, h := range hosts {
		if !IsCandidate(h) {
			continue
		}
		dev := HostToDevice(h, im.autoActivate)
		outcome, err := im.store.UpsertDiscovered(ctx, dev, im.overwrite)
		if err != nil {
			stats.Errors++
			im.logger.Warn("failed to import discovered host",
				zap.String("ip", h.IP),
				zap.Error(err))
			continue
		}
		switch outcome {
		case inventory.OutcomeCreated:
			stats.Saved++
		case inventory.OutcomeUpdated:
			stats.Updated++
		case inventory.OutcomeSkipped:
			stats.Skipped++
		}
	}
	im.logger.Info("discovery import finished",
		zap.Int("saved", stats.Saved),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors))
	return stats
}

// HostToDevice maps a classified host onto an inventory device.
// Exported for testing.
func HostToDevice(h *models.DiscoveredHost, autoActivate bool) *models.Device {
	dev := &models.Device{
		Name:     deviceName(h),
		IP:       h.IP,
		MAC:      h.MAC,
		Subnet:   h.Network,
		Ports:    orderedPorts(h),
		Protocol: deviceProtocol(h),
		Online:   h.RespondsToPing || len(h.OpenPorts) > 0,
		Active:   autoActivate,
		Info:     map[string]string{},
	}
	if h.Industrial != nil && h.Industrial.Manufacturer != "" {
		dev.Info[models.InfoKeyManufacturer] = h.Industrial.Manufacturer
	}
	if h.SysDescr != "" {
		dev.Info["sys_descr"] = h.SysDescr
	}
	if h.SysName != "" {
		dev.Info["sys_name"] = h.SysName
	}
	return dev
}

// deviceName derives a stable name from the classified type and IP:
// "modbus_plc_10_0_0_12".
func deviceName(h *models.DiscoveredHost) string {
	kind := "device"
	if h.Industrial != nil && h.Industrial.Type != "" {
		kind = h.Industrial.Type
	}
	return kind + "_" + strings.ReplaceAll(h.IP, ".", "_")
}

// orderedPorts puts the primary industrial port first so the poller
// dials the protocol port, not the web UI.
func orderedPorts(h *models.DiscoveredHost) []int {
	ports := h.OpenPortList()
	primary := primaryPort(h)
	out := make([]int, 0, len(ports)+1)
	out = append(out, primary)
	for _, p := range ports {
		if p != primary {
			out = append(out, p)
		}
	}
	return out
}

// primaryPort is the first industrial port seen open, else 502.
func primaryPort(h *models.DiscoveredHost) int {
	for _, p := range h.OpenPortList() {
		if isIndustrialPort(p) {
			return p
		}
	}
	return 502
}

// deviceProtocol maps the strongest protocol signal to an inventory tag.
func deviceProtocol(h *models.DiscoveredHost) models.Protocol {
	switch {
	case h.HasOpenPort(502) || h.HasOpenPort(1502):
		return models.ProtocolModbusTCP
	case h.HasOpenPort(102):
		return models.ProtocolS7TCP
	case h.HasOpenPort(44818) || h.HasOpenPort(2222) || h.HasOpenPort(5555):
		return models.ProtocolEthernetIP
	case h.HasOpenPort(4840) || h.HasOpenPort(48400) || h.HasOpenPort(48401) || h.HasOpenPort(48402):
		return models.ProtocolOPCUA
	default:
		return models.ProtocolModbusTCP
	}
}
