package discovery

import "github.com/markus8006/plcfleet/pkg/models"

// portHints maps well-known ports to service hints attached to a host
// when the port turns up open.
var portHints = map[int]models.ServiceHint{
	502:   {Name: "modbus", Protocol: "modbus_tcp", Kind: "industrial"},
	1502:  {Name: "modbus", Protocol: "modbus_tcp", Kind: "industrial"},
	102:   {Name: "s7comm", Protocol: "s7_tcp", Kind: "industrial"},
	44818: {Name: "ethernet_ip", Protocol: "ethernet_ip", Kind: "industrial"},
	2222:  {Name: "ethernet_ip", Protocol: "ethernet_ip", Kind: "industrial"},
	5555:  {Name: "rockwell", Protocol: "ethernet_ip", Kind: "industrial"},
	1911:  {Name: "niagara_fox", Protocol: "fox", Kind: "industrial"},
	4840:  {Name: "opcua", Protocol: "opcua", Kind: "industrial"},
	48400: {Name: "opcua", Protocol: "opcua", Kind: "industrial"},
	48401: {Name: "opcua", Protocol: "opcua", Kind: "industrial"},
	48402: {Name: "opcua", Protocol: "opcua", Kind: "industrial"},
	161:   {Name: "snmp", Protocol: "snmp", Kind: "management"},
	162:   {Name: "snmp-trap", Protocol: "snmp", Kind: "management"},
	80:    {Name: "http", Protocol: "http", Kind: "web"},
	443:   {Name: "https", Protocol: "http", Kind: "web"},
	8080:  {Name: "http-alt", Protocol: "http", Kind: "web"},
	20000: {Name: "dnp3", Protocol: "dnp3", Kind: "industrial"},
	20001: {Name: "dnp3", Protocol: "dnp3", Kind: "industrial"},
	20002: {Name: "dnp3", Protocol: "dnp3", Kind: "industrial"},
	21:    {Name: "ftp", Protocol: "ftp", Kind: "management"},
	23:    {Name: "telnet", Protocol: "telnet", Kind: "management"},
}

// HintForPort returns the service hint for a port, if one is defined.
func HintForPort(port int) (models.ServiceHint, bool) {
	h, ok := portHints[port]
	return h, ok
}

// isIndustrialPort reports whether the port's hint marks it industrial.
func isIndustrialPort(port int) bool {
	h, ok := portHints[port]
	return ok && h.Kind == "industrial"
}

// hasIndustrialPort reports whether at least one of the host's open
// ports is a known industrial service port.
func hasIndustrialPort(h *models.DiscoveredHost) bool {
	for port := range h.OpenPorts {
		if isIndustrialPort(port) {
			return true
		}
	}
	return false
}

// annotateServices attaches service hints for every open port.
func annotateServices(h *models.DiscoveredHost) {
	for port := range h.OpenPorts {
		if hint, ok := portHints[port]; ok {
			if h.Services == nil {
				h.Services = make(map[int]models.ServiceHint)
			}
			h.Services[port] = hint
		}
	}
}
