package discovery

import (
	"testing"

	"github.com/markus8006/plcfleet/pkg/models"
)

func TestNormalizeMAC(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff"},
		{"aa-bb-cc-dd-ee-ff", "aa:bb:cc:dd:ee:ff"},
		{"aabb.ccdd.eeff", "aa:bb:cc:dd:ee:ff"},
		{"a:b:c:d:e:f", "0a:0b:0c:0d:0e:0f"},
		{"  AA:BB:CC:DD:EE:FF  ", "aa:bb:cc:dd:ee:ff"},
		{"00:00:00:00:00:00", ""},
		{"ff:ff:ff:ff:ff:ff", ""},
		{"FF-FF-FF-FF-FF-FF", ""},
		{"not-a-mac", ""},
		{"aa:bb:cc:dd:ee", ""},
		{"aa:bb:cc:dd:ee:ff:11", ""},
		{"gg:bb:cc:dd:ee:ff", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeMAC(tc.in); got != tc.want {
			t.Errorf("NormalizeMAC(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeduplicate_merges_by_MAC(t *testing.T) {
	// The same device observed under two IPs (dual-homed) plus an
	// unrelated host without a MAC.
	a := models.NewDiscoveredHost("10.0.0.5")
	a.MAC = "AA:BB:CC:DD:EE:FF"
	a.MarkPortOpen(502, "tcp_connect")
	a.Via(models.ViaTCP)

	b := models.NewDiscoveredHost("192.168.1.5")
	b.MAC = "aa-bb-cc-dd-ee-ff"
	b.RespondsToPing = true
	b.MarkPortOpen(80, "tcp_connect")
	b.Via(models.ViaICMP)

	c := models.NewDiscoveredHost("10.0.0.9")

	out := Deduplicate([]*models.DiscoveredHost{a, b, c})
	if len(out) != 2 {
		t.Fatalf("expected 2 hosts after dedup, got %d", len(out))
	}

	merged := out[0]
	if merged.MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("merged MAC = %q", merged.MAC)
	}
	// Ping responder wins the representative IP.
	if merged.IP != "192.168.1.5" {
		t.Errorf("representative IP = %q, want the ping responder", merged.IP)
	}
	if !merged.HasOpenPort(502) || !merged.HasOpenPort(80) {
		t.Errorf("merged ports = %v, want union", merged.OpenPortList())
	}
	if !merged.DiscoveredVia[models.ViaTCP] || !merged.DiscoveredVia[models.ViaICMP] {
		t.Errorf("merged via = %v, want union", merged.DiscoveredVia)
	}
	if len(merged.IPsSeen) != 2 {
		t.Errorf("IPsSeen = %v, want both addresses", merged.IPsSeen)
	}
}

func TestDeduplicate_open_ports_beat_first_seen(t *testing.T) {
	a := models.NewDiscoveredHost("10.0.0.5")
	a.MAC = "aa:bb:cc:dd:ee:01"

	b := models.NewDiscoveredHost("10.0.0.6")
	b.MAC = "aa:bb:cc:dd:ee:01"
	b.MarkPortOpen(502, "tcp_connect")

	out := Deduplicate([]*models.DiscoveredHost{a, b})
	if len(out) != 1 {
		t.Fatalf("expected 1 host, got %d", len(out))
	}
	if out[0].IP != "10.0.0.6" {
		t.Errorf("representative IP = %q, want the open-port responder", out[0].IP)
	}
}

func TestDeduplicate_invalid_MAC_keys_by_IP(t *testing.T) {
	a := models.NewDiscoveredHost("10.0.0.5")
	a.MAC = "ff:ff:ff:ff:ff:ff"
	b := models.NewDiscoveredHost("10.0.0.6")
	b.MAC = "broadcast"

	out := Deduplicate([]*models.DiscoveredHost{a, b})
	if len(out) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(out))
	}
	for _, h := range out {
		if h.MAC != "" {
			t.Errorf("host %s kept invalid MAC %q", h.IP, h.MAC)
		}
	}
}
