package discovery

import "testing"

func TestClassifyInterfaceName(t *testing.T) {
	cases := []struct {
		name string
		want InterfaceType
	}{
		{"eth0", InterfaceEthernet},
		{"enp3s0", InterfaceEthernet},
		{"em1", InterfaceEthernet},
		{"wlan0", InterfaceWireless},
		{"wlp2s0", InterfaceWireless},
		{"ath0", InterfaceWireless},
		{"br0", InterfaceBridge},
		{"docker0", InterfaceBridge},
		{"virbr0", InterfaceBridge},
		{"veth1a2b", InterfaceVirtual},
		{"vmnet8", InterfaceVirtual},
		{"tun0", InterfaceTunnel},
		{"tap0", InterfaceTunnel},
		{"wg0", InterfaceTunnel},
		{"ppp0", InterfaceTunnel},
		{"mystery9", InterfaceUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyInterfaceName(tc.name); got != tc.want {
			t.Errorf("ClassifyInterfaceName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestHostCount(t *testing.T) {
	cases := []struct {
		network string
		want    int
	}{
		{"10.0.0.0/24", 254},
		{"10.0.0.0/22", 1022},
		{"10.0.0.0/31", 0},
		{"10.0.0.0/32", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		ni := &NetworkInterface{Network: tc.network}
		if got := ni.HostCount(); got != tc.want {
			t.Errorf("HostCount(%q) = %d, want %d", tc.network, got, tc.want)
		}
	}
}
