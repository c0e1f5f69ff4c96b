// Package adapter isolates protocol specifics behind a uniform
// read/write surface. Adapters never panic and never propagate
// protocol errors to callers; failures are reported as nil reads or
// false returns and recorded in the device journal.
package adapter

import (
	"context"

	"github.com/markus8006/plcfleet/pkg/models"
)

// Adapter is the protocol-neutral surface the pollers drive.
//
// Read returns the raw register words, or nil when the read failed for
// any reason. Coil and discrete reads are widened to one word per bit
// (0 or 1). Connect and Write report success as a bool.
type Adapter interface {
	Connect(ctx context.Context, dev *models.Device, port int) bool
	Disconnect(dev *models.Device)
	Read(ctx context.Context, dev *models.Device, rt models.RegisterType, address, count int) []uint16
	Write(ctx context.Context, dev *models.Device, rt models.RegisterType, address int, value uint16) bool
}
