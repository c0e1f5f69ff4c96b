package discovery

import (
	"sort"
	"strings"

	"github.com/markus8006/plcfleet/pkg/models"
)

// NormalizeMAC canonicalizes a MAC address to lowercase colon-separated
// form. Invalid, zero, and broadcast addresses normalize to "".
func NormalizeMAC(mac string) string {
	s := strings.ToLower(strings.TrimSpace(mac))
	s = strings.ReplaceAll(s, "-", ":")
	s = strings.ReplaceAll(s, ".", "")

	// Cisco dotted format collapses to 12 hex digits; re-insert colons.
	if !strings.Contains(s, ":") && len(s) == 12 {
		var b strings.Builder
		for i := 0; i < 12; i += 2 {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(s[i : i+2])
		}
		s = b.String()
	}

	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return ""
	}
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
			p = parts[i]
		}
		if len(p) != 2 || !isHex(p) {
			return ""
		}
	}
	out := strings.Join(parts, ":")
	switch out {
	case "00:00:00:00:00:00", "ff:ff:ff:ff:ff:ff":
		return ""
	}
	return out
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Deduplicate merges host records that belong to the same physical
// device. Hosts sharing a normalized MAC collapse into one record;
// hosts without a usable MAC are keyed by IP. Observations are merged
// by union, and the representative IP is chosen by evidence strength:
// a ping responder beats an open-port responder beats first seen.
func Deduplicate(hosts []*models.DiscoveredHost) []*models.DiscoveredHost {
	byKey := make(map[string]*models.DiscoveredHost)
	var order []string

	for _, h := range hosts {
		mac := NormalizeMAC(h.MAC)
		h.MAC = mac

		key := "ip:" + h.IP
		if mac != "" {
			key = "mac:" + mac
		}

		existing, ok := byKey[key]
		if !ok {
			byKey[key] = h
			order = append(order, key)
			continue
		}
		merge(existing, h)
	}

	out := make([]*models.DiscoveredHost, 0, len(order))
	for _, key := range order {
		h := byKey[key]
		sort.Strings(h.IPsSeen)
		out = append(out, h)
	}
	return out
}

// merge folds src into dst: union of ports, services, and phases, OR
// of booleans, and representative IP by evidence strength.
func merge(dst, src *models.DiscoveredHost) {
	dstHadPorts := len(dst.OpenPorts) > 0

	for port, st := range src.OpenPorts {
		if dst.OpenPorts[port].State != "open" {
			dst.OpenPorts[port] = st
		}
	}
	for port, hint := range src.Services {
		if _, ok := dst.Services[port]; !ok {
			dst.Services[port] = hint
		}
	}
	for via := range src.DiscoveredVia {
		dst.DiscoveredVia[via] = true
	}

	dst.IPsSeen = unionStrings(dst.IPsSeen, src.IPsSeen)

	if src.SysDescr != "" && dst.SysDescr == "" {
		dst.SysDescr = src.SysDescr
	}
	if src.SysName != "" && dst.SysName == "" {
		dst.SysName = src.SysName
	}
	if src.Interface != "" && dst.Interface == "" {
		dst.Interface = src.Interface
	}
	if src.Network != "" && dst.Network == "" {
		dst.Network = src.Network
	}

	// Representative IP: prefer the ping responder, then the host with
	// open ports, then whatever came first.
	switch {
	case src.RespondsToPing && !dst.RespondsToPing:
		dst.IP = src.IP
	case !dst.RespondsToPing && !dstHadPorts && len(src.OpenPorts) > 0:
		dst.IP = src.IP
	}
	dst.RespondsToPing = dst.RespondsToPing || src.RespondsToPing
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(a, b...) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
