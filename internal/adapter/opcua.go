package adapter

import (
	"context"

	"github.com/markus8006/plcfleet/pkg/models"
)

// StubAdapter is registered for protocols the fleet recognizes during
// discovery but cannot poll yet (OPC UA, S7, EtherNet/IP). It refuses
// every connect so the poller parks the device instead of erroring.
type StubAdapter struct {
	protocol models.Protocol
	journal  *Journal
}

// NewStubAdapter creates a refusing adapter for the given protocol.
func NewStubAdapter(p models.Protocol, journal *Journal) *StubAdapter {
	return &StubAdapter{protocol: p, journal: journal}
}

var _ Adapter = (*StubAdapter)(nil)

func (a *StubAdapter) Connect(_ context.Context, dev *models.Device, port int) bool {
	a.journal.Record(dev.IP, "warn",
		"protocol %s is recognized but not yet pollable, refusing connect to %s:%d",
		a.protocol, dev.IP, port)
	return false
}

func (a *StubAdapter) Disconnect(_ *models.Device) {}

func (a *StubAdapter) Read(_ context.Context, _ *models.Device, _ models.RegisterType, _, _ int) []uint16 {
	return nil
}

func (a *StubAdapter) Write(_ context.Context, _ *models.Device, _ models.RegisterType, _ int, _ uint16) bool {
	return false
}
