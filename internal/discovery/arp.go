package discovery

import (
	"bufio"
	"context"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// ARPReader blends the kernel neighbor table with the classic ARP
// cache to map IPs to MACs without sending a packet.
type ARPReader struct {
	logger *zap.Logger
}

// NewARPReader creates an ARP cache reader.
func NewARPReader(logger *zap.Logger) *ARPReader {
	return &ARPReader{logger: logger}
}

// ReadTable returns IP to normalized-MAC mappings from the system ARP
// cache. Returns an empty map, not an error, when unavailable.
func (r *ARPReader) ReadTable(ctx context.Context) map[string]string {
	switch runtime.GOOS {
	case "linux":
		// ip neigh covers entries /proc/net/arp misses on newer kernels.
		table := r.readIPNeigh(ctx)
		for ip, mac := range r.readProcARP(ctx) {
			if _, ok := table[ip]; !ok {
				table[ip] = mac
			}
		}
		return table
	case "windows", "darwin":
		return r.readARPCommand(ctx)
	default:
		r.logger.Warn("ARP cache reading not supported on this platform",
			zap.String("os", runtime.GOOS))
		return map[string]string{}
	}
}

func (r *ARPReader) readIPNeigh(ctx context.Context) map[string]string {
	out, err := exec.CommandContext(ctx, "ip", "neigh", "show").Output()
	if err != nil {
		r.logger.Debug("ip neigh failed", zap.Error(err))
		return map[string]string{}
	}
	return ParseIPNeighOutput(string(out))
}

func (r *ARPReader) readProcARP(ctx context.Context) map[string]string {
	out, err := exec.CommandContext(ctx, "cat", "/proc/net/arp").Output()
	if err != nil {
		r.logger.Debug("failed to read /proc/net/arp", zap.Error(err))
		return map[string]string{}
	}
	return ParseProcARPOutput(string(out))
}

func (r *ARPReader) readARPCommand(ctx context.Context) map[string]string {
	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		r.logger.Debug("arp -a failed", zap.Error(err))
		return map[string]string{}
	}
	return ParseARPCommandOutput(string(out), runtime.GOOS)
}

// ParseIPNeighOutput parses `ip neigh show` lines. Exported for testing.
// Format: 10.0.0.5 dev eth0 lladdr aa:bb:cc:dd:ee:ff REACHABLE
func ParseIPNeighOutput(output string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		state := fields[len(fields)-1]
		if state == "FAILED" || state == "INCOMPLETE" {
			continue
		}
		var mac string
		for i, f := range fields {
			if f == "lladdr" && i+1 < len(fields) {
				mac = fields[i+1]
			}
		}
		if mac = NormalizeMAC(mac); mac == "" {
			continue
		}
		table[fields[0]] = mac
	}
	return table
}

// ParseProcARPOutput parses /proc/net/arp. Exported for testing.
// Format: IP address  HW type  Flags  HW address  Mask  Device
func ParseProcARPOutput(output string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		mac := NormalizeMAC(fields[3])
		if mac == "" {
			continue
		}
		table[fields[0]] = mac
	}
	return table
}

// ParseARPCommandOutput parses `arp -a` output for the given platform.
// Exported for testing.
func ParseARPCommandOutput(output, platform string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		var ip, mac string
		switch platform {
		case "windows":
			// 192.168.1.1   aa-bb-cc-dd-ee-ff   dynamic
			fields := strings.Fields(strings.TrimSpace(line))
			if len(fields) < 3 || fields[0] == "" || fields[0][0] < '0' || fields[0][0] > '9' {
				continue
			}
			ip, mac = fields[0], fields[1]
		case "darwin":
			// hostname (ip) at mac on iface [...]
			open := strings.Index(line, "(")
			close := strings.Index(line, ")")
			if open < 0 || close <= open {
				continue
			}
			ip = line[open+1 : close]
			atIdx := strings.Index(line[close:], " at ")
			if atIdx < 0 {
				continue
			}
			fields := strings.Fields(line[close+atIdx+4:])
			if len(fields) == 0 {
				continue
			}
			mac = fields[0]
		default:
			continue
		}
		if mac = NormalizeMAC(mac); mac == "" {
			continue
		}
		table[ip] = mac
	}
	return table
}
