package inventory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/markus8006/plcfleet/internal/store"
	"github.com/markus8006/plcfleet/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background(), "inventory", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(s.DB())
}

func testDevice(ip string) *models.Device {
	return &models.Device{
		Name:     "plc-" + ip,
		IP:       ip,
		Protocol: models.ProtocolModbusTCP,
	}
}

func TestCreate_and_GetByIP(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := testDevice("10.0.0.5")
	d.Ports = []int{502}
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID == 0 {
		t.Error("expected device id to be set after create")
	}
	if !d.Manual {
		t.Error("Create should mark the device manual")
	}

	got, err := s.GetByIP(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("GetByIP: %v", err)
	}
	if got.Name != d.Name {
		t.Errorf("name = %q, want %q", got.Name, d.Name)
	}
	if len(got.Ports) != 1 || got.Ports[0] != 502 {
		t.Errorf("ports = %v, want [502]", got.Ports)
	}
	if got.PollingIntervalMs != 1000 || got.TimeoutMs != 3000 {
		t.Errorf("defaults not applied: interval=%d timeout=%d",
			got.PollingIntervalMs, got.TimeoutMs)
	}
}

func TestCreate_applies_configured_poll_defaults(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.SetPollDefaults(250, 750)

	d := testDevice("10.0.0.6")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PollingIntervalMs != 250 || got.TimeoutMs != 750 {
		t.Errorf("configured defaults not applied: interval=%d timeout=%d, want 250/750",
			got.PollingIntervalMs, got.TimeoutMs)
	}

	// Explicit values always win over the defaults.
	explicit := testDevice("10.0.0.7")
	explicit.PollingIntervalMs = 5000
	explicit.TimeoutMs = 2000
	if err := s.Create(ctx, explicit); err != nil {
		t.Fatalf("Create explicit: %v", err)
	}
	got, err = s.GetByID(ctx, explicit.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PollingIntervalMs != 5000 || got.TimeoutMs != 2000 {
		t.Errorf("explicit values overridden: interval=%d timeout=%d",
			got.PollingIntervalMs, got.TimeoutMs)
	}

	// Non-positive overrides leave the previous defaults in place.
	s.SetPollDefaults(0, -1)
	d = testDevice("10.0.0.8")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.PollingIntervalMs != 250 || d.TimeoutMs != 750 {
		t.Errorf("defaults after no-op override: interval=%d timeout=%d, want 250/750",
			d.PollingIntervalMs, d.TimeoutMs)
	}
}

func TestCreate_rejects_invalid_device(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := testDevice("not-an-ip")
	err := s.Create(ctx, d)
	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestCreate_duplicate_ip_fails(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testDevice("10.0.0.9")); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := s.Create(ctx, testDevice("10.0.0.9")); err == nil {
		t.Error("expected unique constraint error for duplicate ip")
	}
}

func TestGetByIP_not_found(t *testing.T) {
	s := testStore(t)

	_, err := s.GetByIP(context.Background(), "10.9.9.9")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertDiscovered_new_ip_creates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := testDevice("10.0.1.1")
	d.Ports = []int{502, 80}
	d.Online = true
	outcome, err := s.UpsertDiscovered(ctx, d, false)
	if err != nil {
		t.Fatalf("UpsertDiscovered: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeCreated)
	}

	got, err := s.GetByIP(ctx, "10.0.1.1")
	if err != nil {
		t.Fatalf("GetByIP: %v", err)
	}
	if got.Manual {
		t.Error("discovered device must not be manual")
	}
	if got.LastConnection == nil {
		t.Error("expected last_connection to be set")
	}
}

func TestUpsertDiscovered_manual_protected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	manual := testDevice("10.0.2.1")
	manual.Name = "line-3-press"
	manual.Active = true
	if err := s.Create(ctx, manual); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found := testDevice("10.0.2.1")
	found.Name = "modbus_plc_10_0_2_1"
	found.MAC = "aa:bb:cc:dd:ee:ff"
	found.Online = true
	outcome, err := s.UpsertDiscovered(ctx, found, false)
	if err != nil {
		t.Fatalf("UpsertDiscovered: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeSkipped)
	}

	got, _ := s.GetByIP(ctx, "10.0.2.1")
	if got.Name != "line-3-press" {
		t.Errorf("manual name overwritten: %q", got.Name)
	}
	if got.MAC != "" {
		t.Errorf("manual mac overwritten: %q", got.MAC)
	}
	if !got.Online {
		t.Error("online flag should still be refreshed on manual devices")
	}
	if got.LastConnection == nil {
		t.Error("last_connection should still be refreshed on manual devices")
	}
}

func TestUpsertDiscovered_overwrite_replaces_manual(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	manual := testDevice("10.0.3.1")
	manual.Name = "keep-me-not"
	if err := s.Create(ctx, manual); err != nil {
		t.Fatalf("Create: %v", err)
	}

	found := testDevice("10.0.3.1")
	found.Name = "siemens_plc_10_0_3_1"
	found.Active = true
	outcome, err := s.UpsertDiscovered(ctx, found, true)
	if err != nil {
		t.Fatalf("UpsertDiscovered: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeUpdated)
	}

	got, _ := s.GetByIP(ctx, "10.0.3.1")
	if got.Name != "siemens_plc_10_0_3_1" {
		t.Errorf("name = %q, want overwrite to win", got.Name)
	}
	if got.Manual {
		t.Error("overwrite should clear the manual flag")
	}
	if !got.Active {
		t.Error("overwrite should apply the incoming active flag")
	}
}

func TestUpsertDiscovered_refresh_preserves_operator_fields(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := testDevice("10.0.4.1")
	first.Name = "auto-name"
	if _, err := s.UpsertDiscovered(ctx, first, false); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Operator renames and tunes the discovered device.
	got, _ := s.GetByIP(ctx, "10.0.4.1")
	got.Name = "furnace-plc"
	got.PollingIntervalMs = 250
	got.Active = true
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	second := testDevice("10.0.4.1")
	second.Name = "auto-name-again"
	second.MAC = "00:11:22:33:44:55"
	second.Ports = []int{502, 443}
	outcome, err := s.UpsertDiscovered(ctx, second, false)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeUpdated)
	}

	got, _ = s.GetByIP(ctx, "10.0.4.1")
	if got.Name != "furnace-plc" {
		t.Errorf("operator name lost: %q", got.Name)
	}
	if got.PollingIntervalMs != 250 {
		t.Errorf("operator interval lost: %d", got.PollingIntervalMs)
	}
	if !got.Active {
		t.Error("operator active flag lost")
	}
	if got.MAC != "00:11:22:33:44:55" {
		t.Errorf("network-observed mac not refreshed: %q", got.MAC)
	}
	if len(got.Ports) != 2 {
		t.Errorf("ports not refreshed: %v", got.Ports)
	}
}

func TestRegisterConfig_CRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := testDevice("10.0.5.1")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	c := &models.RegisterConfig{
		DeviceID:     d.ID,
		Name:         "oven_temp",
		Address:      100,
		Count:        1,
		RegisterType: models.RegisterHolding,
		DataType:     models.DataUint16,
		Active:       true,
	}
	if err := s.CreateRegisterConfig(ctx, c); err != nil {
		t.Fatalf("CreateRegisterConfig: %v", err)
	}
	if c.ScaleFactor != 1.0 {
		t.Errorf("scale_factor default = %v, want 1.0", c.ScaleFactor)
	}

	c.ScaleFactor = 0.1
	c.Unit = "C"
	if err := s.UpdateRegisterConfig(ctx, c); err != nil {
		t.Fatalf("UpdateRegisterConfig: %v", err)
	}

	configs, err := s.ListActiveRegisterConfigs(ctx, d.ID)
	if err != nil {
		t.Fatalf("ListActiveRegisterConfigs: %v", err)
	}
	if len(configs) != 1 || configs[0].Unit != "C" {
		t.Fatalf("configs = %+v, want one entry with unit C", configs)
	}

	if err := s.DeleteRegisterConfig(ctx, c.ID); err != nil {
		t.Fatalf("DeleteRegisterConfig: %v", err)
	}
	configs, _ = s.ListRegisterConfigs(ctx, d.ID)
	if len(configs) != 0 {
		t.Errorf("expected no configs after delete, got %d", len(configs))
	}
}

func TestRegisterConfig_unknown_device(t *testing.T) {
	s := testStore(t)

	c := &models.RegisterConfig{
		DeviceID:     999,
		Name:         "ghost",
		Address:      0,
		Count:        1,
		RegisterType: models.RegisterHolding,
		DataType:     models.DataUint16,
	}
	err := s.CreateRegisterConfig(context.Background(), c)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_cascades_register_configs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := testDevice("10.0.6.1")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	c := &models.RegisterConfig{
		DeviceID:     d.ID,
		Name:         "flow",
		Address:      10,
		Count:        2,
		RegisterType: models.RegisterInput,
		DataType:     models.DataFloat32,
	}
	if err := s.CreateRegisterConfig(ctx, c); err != nil {
		t.Fatalf("CreateRegisterConfig: %v", err)
	}

	if err := s.Delete(ctx, d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	configs, err := s.queryRegisterConfigs(ctx, `
		SELECT id, device_id, name, address, count, register_type, data_type,
			scale_factor, offset, unit, interval_ms, active
		FROM register_configs WHERE device_id = ?`, d.ID)
	if err != nil {
		t.Fatalf("query configs: %v", err)
	}
	if len(configs) != 0 {
		t.Errorf("expected cascade delete, got %d configs", len(configs))
	}
}

func TestSetOnline_and_SetLastConnection(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := testDevice("10.0.7.1")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.SetOnline(ctx, d.ID, true); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SetLastConnection(ctx, d.ID, ts); err != nil {
		t.Fatalf("SetLastConnection: %v", err)
	}

	got, _ := s.GetByID(ctx, d.ID)
	if !got.Online {
		t.Error("online = false, want true")
	}
	if got.LastConnection == nil || !got.LastConnection.Equal(ts) {
		t.Errorf("last_connection = %v, want %v", got.LastConnection, ts)
	}

	if err := s.SetOnline(ctx, 12345, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetOnline on missing device: err = %v, want ErrNotFound", err)
	}
}
