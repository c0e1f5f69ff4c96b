package discovery

import (
	"sort"

	"github.com/markus8006/plcfleet/pkg/models"
)

// candidateConfidence is the score at which a host is considered a
// PLC candidate for import.
const candidateConfidence = 60

// Classify scores a discovered host on weighted port signals and
// fills in its industrial verdict. The score is capped at 100.
func Classify(h *models.DiscoveredHost) {
	info := &models.IndustrialInfo{}
	score := 0
	protocols := map[string]bool{}

	hasModbus := h.HasOpenPort(502) || h.HasOpenPort(1502)
	hasS7 := h.HasOpenPort(102)
	hasHTTP := h.HasOpenPort(80) || h.HasOpenPort(443) || h.HasOpenPort(8080)

	if hasModbus {
		score += 30
		info.Type = "modbus_plc"
		protocols["modbus"] = true
	}
	if hasS7 {
		score += 25
		info.Manufacturer = "siemens"
		protocols["s7"] = true
	}
	if h.HasOpenPort(44818) || h.HasOpenPort(2222) || h.HasOpenPort(5555) || h.HasOpenPort(1911) {
		score += 25
		info.Manufacturer = "rockwell"
		protocols["ethernet_ip"] = true
	}
	if h.HasOpenPort(4840) || h.HasOpenPort(48400) || h.HasOpenPort(48401) || h.HasOpenPort(48402) {
		score += 20
		protocols["opcua"] = true
	}
	if h.HasOpenPort(161) || h.HasOpenPort(162) {
		score += 15
	}

	industrial := len(protocols) > 0
	if hasHTTP && industrial {
		score += 10
		protocols["http"] = true
	}

	// Port combinations typical of PLC management surfaces.
	if hasModbus && (h.HasOpenPort(80) || h.HasOpenPort(443)) {
		score += 20
		info.Type = "modbus_plc"
	}
	if hasS7 && h.HasOpenPort(80) {
		score += 25
		info.Manufacturer = "siemens"
		info.Type = "siemens_plc"
	}

	if score > 100 {
		score = 100
	}
	info.Confidence = score

	for p := range protocols {
		info.Protocols = append(info.Protocols, p)
	}
	sort.Strings(info.Protocols)

	if score > 0 {
		h.Industrial = info
	}
}

// IsCandidate reports whether the host should be offered for import:
// either the classifier is confident, or an industrial port answered.
func IsCandidate(h *models.DiscoveredHost) bool {
	if h.Industrial != nil && h.Industrial.Confidence >= candidateConfidence {
		return true
	}
	for port := range h.OpenPorts {
		if h.HasOpenPort(port) && isIndustrialPort(port) {
			return true
		}
	}
	return false
}
