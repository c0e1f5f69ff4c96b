package models

import (
	"fmt"
	"time"
)

// RegisterType maps to the Modbus table a register lives in.
type RegisterType string

const (
	RegisterHolding  RegisterType = "holding"  // function code 0x03
	RegisterInput    RegisterType = "input"    // function code 0x04
	RegisterCoil     RegisterType = "coil"     // function code 0x01
	RegisterDiscrete RegisterType = "discrete" // function code 0x02
)

// Valid reports whether t is a known register type.
func (t RegisterType) Valid() bool {
	switch t {
	case RegisterHolding, RegisterInput, RegisterCoil, RegisterDiscrete:
		return true
	}
	return false
}

// DataType describes how raw register words decode into a value.
type DataType string

const (
	DataUint16  DataType = "uint16"
	DataInt16   DataType = "int16"
	DataFloat32 DataType = "float32"
	DataBool    DataType = "bool"
)

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool {
	switch t {
	case DataUint16, DataInt16, DataFloat32, DataBool:
		return true
	}
	return false
}

// Width returns the number of 16-bit words the data type occupies.
func (t DataType) Width() int {
	if t == DataFloat32 {
		return 2
	}
	return 1
}

// RegisterConfig declares a variable to read on a device.
// (DeviceID, Address, RegisterType) is unique within the inventory.
type RegisterConfig struct {
	ID           int64        `json:"id"`
	DeviceID     int64        `json:"device_id"`
	Name         string       `json:"name" example:"oven_temp"`
	Address      int          `json:"address" example:"100"`
	Count        int          `json:"count" example:"1"`
	RegisterType RegisterType `json:"register_type" example:"holding"`
	DataType     DataType     `json:"data_type" example:"uint16"`
	ScaleFactor  float64      `json:"scale_factor" example:"0.1"`
	Offset       float64      `json:"offset" example:"0"`
	Unit         string       `json:"unit,omitempty" example:"C"`
	IntervalMs   int          `json:"interval_ms,omitempty"` // 0 means use the device default
	Active       bool         `json:"active"`
}

// Interval returns the effective polling period for this register,
// falling back to the device default when no override is set.
func (c *RegisterConfig) Interval(deviceDefault time.Duration) time.Duration {
	if c.IntervalMs > 0 {
		return time.Duration(c.IntervalMs) * time.Millisecond
	}
	return deviceDefault
}

// End returns the last register address this config covers.
func (c *RegisterConfig) End() int {
	return c.Address + c.Count - 1
}

// Validate checks the register config invariants.
func (c *RegisterConfig) Validate() error {
	if c.Name == "" {
		return &ConfigError{Field: "name", Detail: "must not be empty"}
	}
	if c.Address < 0 {
		return &ConfigError{Field: "address", Detail: "must be non-negative"}
	}
	if c.Count < 1 {
		return &ConfigError{Field: "count", Detail: "must be >= 1"}
	}
	if !c.RegisterType.Valid() {
		return &ConfigError{Field: "register_type", Detail: fmt.Sprintf("unknown register type %q", c.RegisterType)}
	}
	if !c.DataType.Valid() {
		return &ConfigError{Field: "data_type", Detail: fmt.Sprintf("unknown data type %q", c.DataType)}
	}
	if w := c.DataType.Width(); c.Count != w {
		return &ConfigError{Field: "count", Detail: fmt.Sprintf("data type %s requires count %d", c.DataType, w)}
	}
	if c.IntervalMs != 0 && c.IntervalMs < MinPollingIntervalMs {
		return &ConfigError{Field: "interval_ms", Detail: fmt.Sprintf("must be >= %d when set", MinPollingIntervalMs)}
	}
	return nil
}
