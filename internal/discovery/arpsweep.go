package discovery

import (
	"context"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"
)

// ARPSweeper actively resolves hosts on a local network by
// broadcasting a who-has request for every address and collecting the
// replies. Like passive sniffing this needs CAP_NET_RAW; without it
// the sweep degrades to a no-op and the cache read still covers the
// phase.
type ARPSweeper struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewARPSweeper creates an active ARP sweeper.
func NewARPSweeper(timeout time.Duration, logger *zap.Logger) *ARPSweeper {
	return &ARPSweeper{timeout: timeout, logger: logger}
}

// Sweep broadcasts an ARP request for each host on the interface's
// network and returns the IP to normalized-MAC pairs that answered
// within the timeout. A permission failure returns an empty map and no
// error.
func (s *ARPSweeper) Sweep(ctx context.Context, ni NetworkInterface) (map[string]string, error) {
	srcMAC, err := net.ParseMAC(ni.MAC)
	if err != nil {
		s.logger.Debug("interface has no usable MAC, skipping sweep",
			zap.String("interface", ni.Name))
		return nil, nil
	}
	srcIP := net.ParseIP(ni.IP).To4()
	if srcIP == nil {
		return nil, nil
	}
	_, ipNet, err := net.ParseCIDR(ni.Network)
	if err != nil {
		return nil, err
	}
	targets := ExpandSubnet(ipNet)
	if len(targets) == 0 {
		return nil, nil
	}

	handle, err := pcap.OpenLive(ni.Name, 128, false, pcap.BlockForever)
	if err != nil {
		if isPermissionError(err) {
			s.logger.Warn("active ARP sweep unavailable, relying on the cache",
				zap.String("interface", ni.Name),
				zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	defer handle.Close()

	if err := handle.SetBPFFilter("arp"); err != nil {
		return nil, err
	}

	s.logger.Info("ARP sweep started",
		zap.String("interface", ni.Name),
		zap.String("network", ni.Network),
		zap.Int("targets", len(targets)))

	go s.broadcast(ctx, handle, srcMAC, srcIP, targets)

	found := make(map[string]string)
	deadline := time.After(arpTimeout(s.timeout))
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := src.Packets()
	for {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		case <-deadline:
			return found, nil
		case pkt, ok := <-packets:
			if !ok {
				return found, nil
			}
			if ip, mac, ok := arpReply(pkt); ok && ip != ni.IP {
				found[ip] = mac
			}
		}
	}
}

// broadcast sends one request per target. Write failures stop the
// sender; the reply loop still drains until the deadline.
func (s *ARPSweeper) broadcast(ctx context.Context, handle *pcap.Handle,
	srcMAC net.HardwareAddr, srcIP net.IP, targets []string) {
	for _, target := range targets {
		if ctx.Err() != nil {
			return
		}
		dst := net.ParseIP(target).To4()
		if dst == nil {
			continue
		}
		pkt, err := BuildARPRequest(srcMAC, srcIP, dst)
		if err != nil {
			continue
		}
		if err := handle.WritePacketData(pkt); err != nil {
			s.logger.Debug("ARP request write failed, stopping sender",
				zap.String("target", target),
				zap.Error(err))
			return
		}
	}
}

// BuildARPRequest serializes a broadcast who-has request. Exported for
// testing.
func BuildARPRequest(srcMAC net.HardwareAddr, srcIP, dstIP net.IP) ([]byte, error) {
	eth := layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(srcMAC),
		SourceProtAddress: []byte(srcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(dstIP.To4()),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// arpReply extracts the sender IP and MAC from an ARP reply.
func arpReply(pkt gopacket.Packet) (ip, mac string, ok bool) {
	layer := pkt.Layer(layers.LayerTypeARP)
	if layer == nil {
		return "", "", false
	}
	arp, isARP := layer.(*layers.ARP)
	if !isARP || arp.Operation != layers.ARPReply || len(arp.SourceProtAddress) != 4 {
		return "", "", false
	}
	ip = net.IP(arp.SourceProtAddress).String()
	mac = NormalizeMAC(net.HardwareAddr(arp.SourceHwAddress).String())
	if ip == "0.0.0.0" || mac == "" {
		return "", "", false
	}
	return ip, mac, true
}
