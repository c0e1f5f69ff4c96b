package discovery

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"
)

// PassiveObservation is one host seen on the wire without probing it.
type PassiveObservation struct {
	IP  string
	MAC string
}

// PassiveSniffer listens for ARP traffic on an interface. Sniffing
// needs CAP_NET_RAW; when the capture cannot be opened for permission
// reasons the phase degrades to a no-op with a single log line instead
// of failing the run.
type PassiveSniffer struct {
	logger *zap.Logger
}

// NewPassiveSniffer creates a passive sniffer.
func NewPassiveSniffer(logger *zap.Logger) *PassiveSniffer {
	return &PassiveSniffer{logger: logger}
}

// Sniff captures ARP packets on the interface for the given window and
// returns the hosts observed. A permission failure returns an empty
// slice and no error.
func (s *PassiveSniffer) Sniff(ctx context.Context, ifaceName string, window time.Duration) ([]PassiveObservation, error) {
	handle, err := pcap.OpenLive(ifaceName, 128, false, pcap.BlockForever)
	if err != nil {
		if isPermissionError(err) {
			s.logger.Warn("passive sniffing unavailable, continuing without it",
				zap.String("interface", ifaceName),
				zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	defer handle.Close()

	if err := handle.SetBPFFilter("arp"); err != nil {
		return nil, err
	}

	s.logger.Info("passive sniff started",
		zap.String("interface", ifaceName),
		zap.Duration("window", window))

	deadline := time.After(window)
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := src.Packets()

	seen := make(map[string]PassiveObservation)
	for {
		select {
		case <-ctx.Done():
			return collect(seen), ctx.Err()
		case <-deadline:
			return collect(seen), nil
		case pkt, ok := <-packets:
			if !ok {
				return collect(seen), nil
			}
			if obs, ok := arpSender(pkt); ok {
				seen[obs.IP] = obs
			}
		}
	}
}

// arpSender extracts the sender IP and MAC from an ARP packet.
func arpSender(pkt gopacket.Packet) (PassiveObservation, bool) {
	layer := pkt.Layer(layers.LayerTypeARP)
	if layer == nil {
		return PassiveObservation{}, false
	}
	arp, ok := layer.(*layers.ARP)
	if !ok || len(arp.SourceProtAddress) != 4 {
		return PassiveObservation{}, false
	}
	ip := net.IP(arp.SourceProtAddress).String()
	mac := NormalizeMAC(net.HardwareAddr(arp.SourceHwAddress).String())
	if ip == "0.0.0.0" {
		return PassiveObservation{}, false
	}
	return PassiveObservation{IP: ip, MAC: mac}, true
}

func collect(seen map[string]PassiveObservation) []PassiveObservation {
	out := make([]PassiveObservation, 0, len(seen))
	for _, obs := range seen {
		out = append(out, obs)
	}
	return out
}

// isPermissionError recognizes the ways a denied capture surfaces:
// a wrapped EPERM/EACCES or libpcap's string-only permission errors.
func isPermissionError(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission") || strings.Contains(msg, "operation not permitted")
}
