package discovery

import (
	"context"
	"encoding/xml"
	"os/exec"
	"strconv"
	"time"

	"github.com/markus8006/plcfleet/pkg/models"
	"go.uber.org/zap"
)

// DeepScanner shells out to nmap for service and version detection on
// hosts the quick probe already flagged. Absence of the nmap binary
// disables the phase, it never fails a run.
type DeepScanner struct {
	hostTimeout time.Duration
	logger      *zap.Logger
}

// NewDeepScanner creates an nmap-backed deep scanner.
func NewDeepScanner(hostTimeout time.Duration, logger *zap.Logger) *DeepScanner {
	return &DeepScanner{hostTimeout: hostTimeout, logger: logger}
}

// Available reports whether nmap can be executed.
func (d *DeepScanner) Available() bool {
	_, err := exec.LookPath("nmap")
	return err == nil
}

// ScanHost runs a service-detection scan against one host and merges
// the findings into the host record.
func (d *DeepScanner) ScanHost(ctx context.Context, h *models.DiscoveredHost) {
	scanCtx, cancel := context.WithTimeout(ctx, d.hostTimeout)
	defer cancel()

	args := []string{
		"-sV", "-Pn",
		"--host-timeout", strconv.Itoa(int(d.hostTimeout.Seconds())) + "s",
		"-p", portSpec(h),
		"-oX", "-",
		h.IP,
	}
	out, err := exec.CommandContext(scanCtx, "nmap", args...).Output()
	if err != nil {
		d.logger.Warn("deep scan failed",
			zap.String("ip", h.IP),
			zap.Error(err))
		return
	}

	found := ParseNmapXML(out)
	for port, hint := range found {
		h.MarkPortOpen(port, "nmap")
		h.Services[port] = hint
		h.Via(models.ViaNmap)
	}
}

// portSpec renders the host's known open ports as an nmap -p argument,
// falling back to the industrial set when none are known yet.
func portSpec(h *models.DiscoveredHost) string {
	ports := h.OpenPortList()
	if len(ports) == 0 {
		ports = IndustrialPorts
	}
	spec := ""
	for i, p := range ports {
		if i > 0 {
			spec += ","
		}
		spec += strconv.Itoa(p)
	}
	return spec
}

// nmap XML subset we care about.
type nmapRun struct {
	Hosts []struct {
		Ports struct {
			Ports []struct {
				PortID  int    `xml:"portid,attr"`
				Proto   string `xml:"protocol,attr"`
				State   struct {
					State string `xml:"state,attr"`
				} `xml:"state"`
				Service struct {
					Name    string `xml:"name,attr"`
					Product string `xml:"product,attr"`
					Version string `xml:"version,attr"`
				} `xml:"service"`
			} `xml:"port"`
		} `xml:"ports"`
	} `xml:"host"`
}

// ParseNmapXML extracts open TCP ports and their service hints from
// nmap -oX output. Exported for testing.
func ParseNmapXML(data []byte) map[int]models.ServiceHint {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil
	}

	out := make(map[int]models.ServiceHint)
	for _, host := range run.Hosts {
		for _, p := range host.Ports.Ports {
			if p.Proto != "tcp" || p.State.State != "open" {
				continue
			}
			hint, known := portHints[p.PortID]
			if !known {
				hint = models.ServiceHint{Name: p.Service.Name, Kind: "unknown"}
			}
			hint.Product = p.Service.Product
			hint.Version = p.Service.Version
			out[p.PortID] = hint
		}
	}
	return out
}
