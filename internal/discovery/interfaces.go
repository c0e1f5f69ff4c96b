package discovery

import (
	"net"
	"strings"
)

// InterfaceType buckets network interfaces for scan planning.
type InterfaceType string

const (
	InterfaceEthernet InterfaceType = "ethernet"
	InterfaceWireless InterfaceType = "wireless"
	InterfaceBridge   InterfaceType = "bridge"
	InterfaceVirtual  InterfaceType = "virtual"
	InterfaceTunnel   InterfaceType = "tunnel"
	InterfaceUnknown  InterfaceType = "unknown"
)

// NetworkInterface is one usable interface with its IPv4 network.
type NetworkInterface struct {
	Name    string        `json:"name"`
	Type    InterfaceType `json:"type"`
	IP      string        `json:"ip"`
	Network string        `json:"network"` // CIDR
	MAC     string        `json:"mac,omitempty"`
}

// HostCount returns the number of usable host addresses on the
// interface's network.
func (ni *NetworkInterface) HostCount() int {
	_, ipNet, err := net.ParseCIDR(ni.Network)
	if err != nil {
		return 0
	}
	ones, bits := ipNet.Mask.Size()
	hostBits := bits - ones
	if hostBits <= 1 {
		return 0
	}
	return (1 << hostBits) - 2
}

// ClassifyInterfaceName buckets an interface by its OS naming
// convention. Exported for testing.
func ClassifyInterfaceName(name string) InterfaceType {
	n := strings.ToLower(name)
	switch {
	case strings.HasPrefix(n, "eth") || strings.HasPrefix(n, "en") || strings.HasPrefix(n, "em"):
		return InterfaceEthernet
	case strings.HasPrefix(n, "wl") || strings.HasPrefix(n, "ath") || strings.HasPrefix(n, "wifi"):
		return InterfaceWireless
	case strings.HasPrefix(n, "br") || strings.HasPrefix(n, "docker") || strings.HasPrefix(n, "virbr"):
		return InterfaceBridge
	case strings.HasPrefix(n, "veth") || strings.HasPrefix(n, "vmnet") || strings.HasPrefix(n, "vbox"):
		return InterfaceVirtual
	case strings.HasPrefix(n, "tun") || strings.HasPrefix(n, "tap") || strings.HasPrefix(n, "wg") ||
		strings.HasPrefix(n, "ppp") || strings.HasPrefix(n, "ipsec"):
		return InterfaceTunnel
	default:
		return InterfaceUnknown
	}
}

// EnumerateInterfaces lists the up, non-loopback interfaces carrying
// an IPv4 address. Tunnel and virtual interfaces are included; the
// caller decides what to scan.
func EnumerateInterfaces() ([]NetworkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []NetworkInterface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			out = append(out, NetworkInterface{
				Name:    iface.Name,
				Type:    ClassifyInterfaceName(iface.Name),
				IP:      ipNet.IP.String(),
				Network: ipNet.String(),
				MAC:     iface.HardwareAddr.String(),
			})
		}
	}
	return out, nil
}
