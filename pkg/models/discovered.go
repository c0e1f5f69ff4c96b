package models

import (
	"sort"
	"time"
)

// Discovery phases that can observe a host.
const (
	ViaPassive = "passive"
	ViaARP     = "arp"
	ViaICMP    = "icmp"
	ViaTCP     = "tcp"
	ViaNmap    = "nmap"
	ViaSNMP    = "snmp"
)

// PortState records how a port was observed during discovery.
type PortState struct {
	State  string `json:"state" example:"open"`
	Method string `json:"method" example:"tcp_connect"`
}

// ServiceHint is the identification attached to an open port.
type ServiceHint struct {
	Name     string `json:"name" example:"modbus"`
	Protocol string `json:"protocol,omitempty" example:"modbus_tcp"`
	Kind     string `json:"kind" example:"industrial"` // "industrial", "web", "management", "unknown"
	Product  string `json:"product,omitempty"`
	Version  string `json:"version,omitempty"`
}

// IndustrialInfo is the classifier's verdict for a discovered host.
type IndustrialInfo struct {
	Type         string   `json:"type,omitempty" example:"modbus_plc"`
	Manufacturer string   `json:"manufacturer,omitempty" example:"siemens"`
	Protocols    []string `json:"protocols,omitempty"`
	Confidence   int      `json:"confidence"` // 0-100
}

// DiscoveredHost is the transient record a discovery run produces for
// one host. Hosts are deduplicated by normalized MAC before import.
type DiscoveredHost struct {
	IP             string               `json:"ip"`
	MAC            string               `json:"mac,omitempty"`
	Interface      string               `json:"interface,omitempty"`
	Network        string               `json:"network,omitempty"`
	OpenPorts      map[int]PortState    `json:"open_ports,omitempty"`
	Services       map[int]ServiceHint  `json:"services,omitempty"`
	DiscoveredVia  map[string]bool      `json:"discovered_via,omitempty"`
	RespondsToPing bool                 `json:"responds_to_ping"`
	IPsSeen        []string             `json:"ips_seen,omitempty"`
	Industrial     *IndustrialInfo      `json:"industrial_device,omitempty"`
	SysDescr       string               `json:"sys_descr,omitempty"`
	SysName        string               `json:"sys_name,omitempty"`
	Timestamp      time.Time            `json:"timestamp"`
}

// NewDiscoveredHost returns a host record with maps initialized.
func NewDiscoveredHost(ip string) *DiscoveredHost {
	return &DiscoveredHost{
		IP:            ip,
		OpenPorts:     make(map[int]PortState),
		Services:      make(map[int]ServiceHint),
		DiscoveredVia: make(map[string]bool),
		IPsSeen:       []string{ip},
		Timestamp:     time.Now().UTC(),
	}
}

// Via marks the host as observed by the given discovery phase.
func (h *DiscoveredHost) Via(method string) {
	if h.DiscoveredVia == nil {
		h.DiscoveredVia = make(map[string]bool)
	}
	h.DiscoveredVia[method] = true
}

// MarkPortOpen records an open port observation.
func (h *DiscoveredHost) MarkPortOpen(port int, method string) {
	if h.OpenPorts == nil {
		h.OpenPorts = make(map[int]PortState)
	}
	h.OpenPorts[port] = PortState{State: "open", Method: method}
}

// OpenPortList returns the host's open ports in ascending order.
func (h *DiscoveredHost) OpenPortList() []int {
	ports := make([]int, 0, len(h.OpenPorts))
	for p, st := range h.OpenPorts {
		if st.State == "open" {
			ports = append(ports, p)
		}
	}
	sort.Ints(ports)
	return ports
}

// HasOpenPort reports whether the given port was seen open.
func (h *DiscoveredHost) HasOpenPort(port int) bool {
	return h.OpenPorts[port].State == "open"
}
