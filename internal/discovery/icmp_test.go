package discovery

import (
	"net"
	"testing"
)

func mustCIDR(t *testing.T, cidr string) *net.IPNet {
	t.Helper()
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		t.Fatal(err)
	}
	return ipNet
}

func TestExpandSubnet(t *testing.T) {
	hosts := ExpandSubnet(mustCIDR(t, "192.168.1.0/24"))
	if len(hosts) != 254 {
		t.Fatalf("got %d hosts, want 254", len(hosts))
	}
	if hosts[0] != "192.168.1.1" {
		t.Errorf("first host = %q", hosts[0])
	}
	if hosts[len(hosts)-1] != "192.168.1.254" {
		t.Errorf("last host = %q", hosts[len(hosts)-1])
	}
	for _, h := range hosts {
		if h == "192.168.1.0" || h == "192.168.1.255" {
			t.Errorf("network/broadcast address included: %s", h)
		}
	}
}

func TestExpandSubnet_crosses_octet_boundary(t *testing.T) {
	hosts := ExpandSubnet(mustCIDR(t, "10.0.0.0/23"))
	if len(hosts) != 510 {
		t.Fatalf("got %d hosts, want 510", len(hosts))
	}
	found := false
	for _, h := range hosts {
		if h == "10.0.1.1" {
			found = true
			break
		}
	}
	if !found {
		t.Error("second /24 of the /23 missing from expansion")
	}
}

func TestExpandSubnet_too_wide_or_too_narrow(t *testing.T) {
	if hosts := ExpandSubnet(mustCIDR(t, "10.0.0.0/8")); hosts != nil {
		t.Errorf("/8 should expand to nil, got %d hosts", len(hosts))
	}
	if hosts := ExpandSubnet(mustCIDR(t, "10.0.0.0/31")); hosts != nil {
		t.Errorf("/31 should expand to nil, got %d hosts", len(hosts))
	}
}
