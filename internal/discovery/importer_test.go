package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/markus8006/plcfleet/internal/inventory"
	"github.com/markus8006/plcfleet/pkg/models"
	"go.uber.org/zap"
)

type fakeDeviceStore struct {
	outcomes map[string]inventory.UpsertOutcome
	failIPs  map[string]bool
	seen     []*models.Device
}

func (f *fakeDeviceStore) UpsertDiscovered(_ context.Context, d *models.Device, _ bool) (inventory.UpsertOutcome, error) {
	f.seen = append(f.seen, d)
	if f.failIPs[d.IP] {
		return 0, errors.New("database locked")
	}
	return f.outcomes[d.IP], nil
}

func (f *fakeDeviceStore) ListDiscovered(_ context.Context) ([]models.Device, error) {
	out := make([]models.Device, 0, len(f.seen))
	for _, d := range f.seen {
		out = append(out, *d)
	}
	return out, nil
}

func TestHostToDevice_mapping(t *testing.T) {
	h := models.NewDiscoveredHost("10.0.0.12")
	h.MAC = "aa:bb:cc:dd:ee:ff"
	h.Network = "10.0.0.0/24"
	h.MarkPortOpen(80, "tcp_connect")
	h.MarkPortOpen(502, "tcp_connect")
	h.SysDescr = "Schneider M221"
	Classify(h)

	dev := HostToDevice(h, true)

	if dev.Name != "modbus_plc_10_0_0_12" {
		t.Errorf("name = %q", dev.Name)
	}
	if dev.Protocol != models.ProtocolModbusTCP {
		t.Errorf("protocol = %q", dev.Protocol)
	}
	// Industrial port first so the poller dials the protocol port.
	if len(dev.Ports) == 0 || dev.Ports[0] != 502 {
		t.Errorf("ports = %v, want 502 first", dev.Ports)
	}
	if !dev.Online {
		t.Error("host with open ports should be online")
	}
	if !dev.Active {
		t.Error("autoActivate should set active")
	}
	if dev.Info["sys_descr"] != "Schneider M221" {
		t.Errorf("info = %v", dev.Info)
	}
	if dev.Subnet != "10.0.0.0/24" {
		t.Errorf("subnet = %q", dev.Subnet)
	}
}

func TestHostToDevice_s7_protocol(t *testing.T) {
	h := models.NewDiscoveredHost("10.0.0.20")
	h.MarkPortOpen(102, "tcp_connect")
	Classify(h)

	dev := HostToDevice(h, false)
	if dev.Protocol != models.ProtocolS7TCP {
		t.Errorf("protocol = %q, want s7", dev.Protocol)
	}
	if dev.Name != "siemens_plc_10_0_0_20" && dev.Name != "device_10_0_0_20" {
		// Port 102 alone gives no type, so the generic prefix applies.
		t.Errorf("name = %q", dev.Name)
	}
	if dev.Active {
		t.Error("active should follow autoActivate")
	}
}

func TestHostToDevice_no_ports_defaults_to_modbus_502(t *testing.T) {
	h := models.NewDiscoveredHost("10.0.0.30")
	h.RespondsToPing = true

	dev := HostToDevice(h, false)
	if dev.Protocol != models.ProtocolModbusTCP {
		t.Errorf("protocol = %q", dev.Protocol)
	}
	if len(dev.Ports) != 1 || dev.Ports[0] != 502 {
		t.Errorf("ports = %v, want [502]", dev.Ports)
	}
	if !dev.Online {
		t.Error("ping responder should be online")
	}
}

func TestImport_counts_outcomes(t *testing.T) {
	created := hostWithPorts(502, 80)
	created.IP = "10.0.0.1"
	Classify(created)

	updated := hostWithPorts(102, 80)
	updated.IP = "10.0.0.2"
	Classify(updated)

	skipped := hostWithPorts(502, 80)
	skipped.IP = "10.0.0.3"
	Classify(skipped)

	failing := hostWithPorts(502, 80)
	failing.IP = "10.0.0.4"
	Classify(failing)

	notCandidate := models.NewDiscoveredHost("10.0.0.5")
	notCandidate.RespondsToPing = true

	store := &fakeDeviceStore{
		outcomes: map[string]inventory.UpsertOutcome{
			"10.0.0.1": inventory.OutcomeCreated,
			"10.0.0.2": inventory.OutcomeUpdated,
			"10.0.0.3": inventory.OutcomeSkipped,
		},
		failIPs: map[string]bool{"10.0.0.4": true},
	}

	im := NewImporter(store, false, false, zap.NewNop())
	stats := im.Import(context.Background(), []*models.DiscoveredHost{
		created, updated, skipped, failing, notCandidate,
	})

	if stats.Saved != 1 || stats.Updated != 1 || stats.Skipped != 1 || stats.Errors != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(store.seen) != 4 {
		t.Errorf("store saw %d devices, want 4 (non-candidate excluded)", len(store.seen))
	}
}
