package models

import (
	"fmt"
	"net"
	"time"
)

// Protocol identifies the wire protocol used to talk to a controller.
type Protocol string

const (
	ProtocolModbusTCP  Protocol = "modbus_tcp"
	ProtocolS7TCP      Protocol = "s7_tcp"
	ProtocolEthernetIP Protocol = "ethernet_ip"
	ProtocolOPCUA      Protocol = "opcua"
)

// Valid reports whether p is a supported protocol tag.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolModbusTCP, ProtocolS7TCP, ProtocolEthernetIP, ProtocolOPCUA:
		return true
	}
	return false
}

// WordOrder describes how a device lays out 32-bit values across two
// consecutive 16-bit registers.
type WordOrder string

const (
	WordOrderBig    WordOrder = "big"    // high word first (default)
	WordOrderLittle WordOrder = "little" // low word first
)

// Device info keys with defined meaning. Everything else in the info bag
// is free-form operator metadata.
const (
	InfoKeyWordOrder    = "word_order"
	InfoKeyManufacturer = "manufacturer"
	InfoKeyModel        = "model"
)

// Minimum accepted polling interval and per-call timeout, in milliseconds.
const (
	MinPollingIntervalMs = 100
	MinTimeoutMs         = 100
)

// Device represents a controller tracked in the inventory.
type Device struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name" example:"Modbus PLC 10.0.0.12"`
	IP                string            `json:"ip" example:"10.0.0.12"`
	MAC               string            `json:"mac,omitempty" example:"00:1a:2b:3c:4d:5e"`
	Subnet            string            `json:"subnet,omitempty" example:"10.0.0.0/24"`
	Ports             []int             `json:"ports"`
	Protocol          Protocol          `json:"protocol" example:"modbus_tcp"`
	UnitID            int               `json:"unit_id" example:"1"`
	PollingIntervalMs int               `json:"polling_interval_ms" example:"1000"`
	TimeoutMs         int               `json:"timeout_ms" example:"3000"`
	Active            bool              `json:"active"`
	Online            bool              `json:"online"`
	LastConnection    *time.Time        `json:"last_connection,omitempty"`
	Manual            bool              `json:"manual"`
	Info              map[string]string `json:"info,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// PollingInterval returns the device-level default polling interval.
func (d *Device) PollingInterval() time.Duration {
	return time.Duration(d.PollingIntervalMs) * time.Millisecond
}

// Timeout returns the per-call network timeout for this device.
func (d *Device) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// WordOrder returns the declared 32-bit word order, defaulting to
// high-word-first when the device does not declare one.
func (d *Device) WordOrder() WordOrder {
	if d.Info != nil && d.Info[InfoKeyWordOrder] == string(WordOrderLittle) {
		return WordOrderLittle
	}
	return WordOrderBig
}

// PrimaryPort returns the device's first declared port, or fallback if
// the device declares none.
func (d *Device) PrimaryPort(fallback int) int {
	if len(d.Ports) > 0 {
		return d.Ports[0]
	}
	return fallback
}

// Validate checks the device invariants. Violations are reported as
// *ConfigError so callers can distinguish bad configuration from
// runtime faults.
func (d *Device) Validate() error {
	if d.IP == "" {
		return &ConfigError{Field: "ip", Detail: "must not be empty"}
	}
	if net.ParseIP(d.IP) == nil {
		return &ConfigError{Field: "ip", Detail: fmt.Sprintf("invalid ip address %q", d.IP)}
	}
	if !d.Protocol.Valid() {
		return &ConfigError{Field: "protocol", Detail: fmt.Sprintf("unsupported protocol %q", d.Protocol)}
	}
	if d.PollingIntervalMs < MinPollingIntervalMs {
		return &ConfigError{Field: "polling_interval_ms", Detail: fmt.Sprintf("must be >= %d", MinPollingIntervalMs)}
	}
	if d.TimeoutMs < MinTimeoutMs {
		return &ConfigError{Field: "timeout_ms", Detail: fmt.Sprintf("must be >= %d", MinTimeoutMs)}
	}
	return nil
}

// ConfigError describes invalid device or register configuration.
// Configuration errors are fatal at start: the supervisor refuses the
// device instead of retrying.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Detail)
}
