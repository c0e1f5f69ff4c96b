package adapter

import (
	"context"

	modbus "github.com/hootrhino/gomodbus"
	"github.com/markus8006/plcfleet/pkg/models"
)

// ModbusAdapter drives Modbus TCP devices through a shared client
// pool. It satisfies the no-raise contract: every failure path logs to
// the device journal and reports nil or false.
type ModbusAdapter struct {
	pool    *ClientPool
	journal *Journal
}

// NewModbusAdapter creates a Modbus TCP adapter.
func NewModbusAdapter(pool *ClientPool, journal *Journal) *ModbusAdapter {
	return &ModbusAdapter{pool: pool, journal: journal}
}

var _ Adapter = (*ModbusAdapter)(nil)

// Connect dials the device on the given port.
func (a *ModbusAdapter) Connect(_ context.Context, dev *models.Device, port int) bool {
	e := a.pool.entry(dev.IP)
	if err := e.connect(dev.IP, port, dev.Timeout()); err != nil {
		a.journal.Record(dev.IP, "error", "connect %s:%d failed: %v", dev.IP, port, err)
		return false
	}
	a.journal.Record(dev.IP, "info", "connected to %s:%d", dev.IP, port)
	return true
}

// Disconnect drops the pooled connection for the device.
func (a *ModbusAdapter) Disconnect(dev *models.Device) {
	a.pool.entry(dev.IP).close()
	a.journal.Record(dev.IP, "info", "disconnected from %s", dev.IP)
}

// Read fetches count registers starting at address. Coil and discrete
// responses are widened to one word per bit. Returns nil on any
// failure, including an unconnected pool entry.
func (a *ModbusAdapter) Read(ctx context.Context, dev *models.Device, rt models.RegisterType, address, count int) []uint16 {
	if err := ctx.Err(); err != nil {
		return nil
	}

	unit := uint16(dev.UnitID)
	addr := uint16(address)
	qty := uint16(count)

	var result []uint16
	err := a.pool.entry(dev.IP).withClient(func(api modbus.ModbusApi) error {
		switch rt {
		case models.RegisterHolding:
			words, err := api.ReadHoldingRegisters(unit, addr, qty)
			result = words
			return err
		case models.RegisterInput:
			words, err := api.ReadInputRegisters(unit, addr, qty)
			result = words
			return err
		case models.RegisterCoil:
			bits, err := api.ReadCoils(unit, addr, qty)
			result = bitsToWords(bits, count)
			return err
		case models.RegisterDiscrete:
			bits, err := api.ReadDiscreteInputs(unit, addr, qty)
			result = bitsToWords(bits, count)
			return err
		default:
			return &models.ConfigError{Field: "register_type", Detail: string(rt)}
		}
	})
	if err != nil {
		a.journal.Record(dev.IP, "warn", "read %s %d+%d failed: %v", rt, address, count, err)
		return nil
	}
	if len(result) < count {
		a.journal.Record(dev.IP, "warn", "read %s %d+%d returned %d words", rt, address, count, len(result))
		return nil
	}
	return result[:count]
}

// Write sets a single holding register or coil.
func (a *ModbusAdapter) Write(ctx context.Context, dev *models.Device, rt models.RegisterType, address int, value uint16) bool {
	if err := ctx.Err(); err != nil {
		return false
	}

	unit := uint16(dev.UnitID)
	addr := uint16(address)

	err := a.pool.entry(dev.IP).withClient(func(api modbus.ModbusApi) error {
		switch rt {
		case models.RegisterHolding:
			return api.WriteSingleRegister(unit, addr, value)
		case models.RegisterCoil:
			return api.WriteSingleCoil(unit, addr, value != 0)
		default:
			return &models.ConfigError{Field: "register_type", Detail: "write not supported for " + string(rt)}
		}
	})
	if err != nil {
		a.journal.Record(dev.IP, "warn", "write %s %d failed: %v", rt, address, err)
		return false
	}
	return true
}

func bitsToWords(bits []bool, count int) []uint16 {
	words := make([]uint16, 0, count)
	for _, b := range bits {
		var w uint16
		if b {
			w = 1
		}
		words = append(words, w)
	}
	return words
}
