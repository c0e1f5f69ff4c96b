package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/markus8006/plcfleet/pkg/models"
)

func TestRegistry_resolve_known_protocol(t *testing.T) {
	r := NewRegistry()
	journal := NewJournal()
	r.Register(models.ProtocolModbusTCP, func() Adapter {
		return NewModbusAdapter(NewClientPool(), journal)
	})
	r.Seal()

	a, err := r.Resolve(models.ProtocolModbusTCP)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a == nil {
		t.Fatal("Resolve returned nil adapter")
	}
}

func TestRegistry_unknown_protocol_is_config_error(t *testing.T) {
	r := NewRegistry()
	r.Seal()

	_, err := r.Resolve(models.Protocol("dnp3"))
	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestRegistry_register_after_seal_panics(t *testing.T) {
	r := NewRegistry()
	r.Seal()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on Register after Seal")
		}
	}()
	r.Register(models.ProtocolModbusTCP, func() Adapter { return nil })
}

func TestRegistry_duplicate_protocol_panics(t *testing.T) {
	r := NewRegistry()
	r.Register(models.ProtocolOPCUA, func() Adapter { return nil })

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate Register")
		}
	}()
	r.Register(models.ProtocolOPCUA, func() Adapter { return nil })
}

func TestStubAdapter_refuses_everything(t *testing.T) {
	journal := NewJournal()
	a := NewStubAdapter(models.ProtocolOPCUA, journal)
	dev := &models.Device{IP: "10.0.0.1", Protocol: models.ProtocolOPCUA}

	if a.Connect(context.Background(), dev, 4840) {
		t.Error("stub Connect returned true")
	}
	if got := a.Read(context.Background(), dev, models.RegisterHolding, 0, 1); got != nil {
		t.Errorf("stub Read = %v, want nil", got)
	}
	if a.Write(context.Background(), dev, models.RegisterHolding, 0, 1) {
		t.Error("stub Write returned true")
	}
	if len(journal.Entries("10.0.0.1")) == 0 {
		t.Error("expected refused connect to be journaled")
	}
}

func TestModbusAdapter_read_without_connection(t *testing.T) {
	journal := NewJournal()
	a := NewModbusAdapter(NewClientPool(), journal)
	dev := &models.Device{IP: "10.0.0.2", UnitID: 1, TimeoutMs: 100}

	got := a.Read(context.Background(), dev, models.RegisterHolding, 100, 2)
	if got != nil {
		t.Errorf("Read without connection = %v, want nil", got)
	}
	if len(journal.Entries("10.0.0.2")) == 0 {
		t.Error("expected failed read to be journaled")
	}
}

func TestBitsToWords(t *testing.T) {
	got := bitsToWords([]bool{true, false, true}, 3)
	want := []uint16{1, 0, 1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
