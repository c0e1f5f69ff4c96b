package discovery

import (
	"bytes"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func TestBuildARPRequest(t *testing.T) {
	srcMAC, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("ParseMAC: %v", err)
	}
	srcIP := net.ParseIP("10.0.0.2")
	dstIP := net.ParseIP("10.0.0.77")

	data, err := BuildARPRequest(srcMAC, srcIP, dstIP)
	if err != nil {
		t.Fatalf("BuildARPRequest: %v", err)
	}

	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)

	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		t.Fatal("no ethernet layer")
	}
	eth := ethLayer.(*layers.Ethernet)
	broadcast := net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if !bytes.Equal(eth.DstMAC, broadcast) {
		t.Errorf("dst mac = %s, want broadcast", eth.DstMAC)
	}
	if !bytes.Equal(eth.SrcMAC, srcMAC) {
		t.Errorf("src mac = %s, want %s", eth.SrcMAC, srcMAC)
	}
	if eth.EthernetType != layers.EthernetTypeARP {
		t.Errorf("ethertype = %v, want ARP", eth.EthernetType)
	}

	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		t.Fatal("no ARP layer")
	}
	arp := arpLayer.(*layers.ARP)
	if arp.Operation != layers.ARPRequest {
		t.Errorf("operation = %d, want request", arp.Operation)
	}
	if got := net.IP(arp.SourceProtAddress).String(); got != "10.0.0.2" {
		t.Errorf("sender ip = %s, want 10.0.0.2", got)
	}
	if got := net.IP(arp.DstProtAddress).String(); got != "10.0.0.77" {
		t.Errorf("target ip = %s, want 10.0.0.77", got)
	}
	if !bytes.Equal(arp.SourceHwAddress, srcMAC) {
		t.Errorf("sender mac = %x, want %x", arp.SourceHwAddress, srcMAC)
	}
}

func buildARPReply(t *testing.T, senderMAC net.HardwareAddr, senderIP net.IP) gopacket.Packet {
	t.Helper()
	eth := layers.Ethernet{
		SrcMAC:       senderMAC,
		DstMAC:       net.HardwareAddr{0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   []byte(senderMAC),
		SourceProtAddress: []byte(senderIP.To4()),
		DstHwAddress:      []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66},
		DstProtAddress:    []byte(net.ParseIP("10.0.0.2").To4()),
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, &eth, &arp); err != nil {
		t.Fatalf("serialize reply: %v", err)
	}
	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func TestArpReply_accepts_replies_and_ignores_requests(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:5e:10:00:01")

	reply := buildARPReply(t, mac, net.ParseIP("10.0.0.77"))
	ip, got, ok := arpReply(reply)
	if !ok {
		t.Fatal("reply not recognized")
	}
	if ip != "10.0.0.77" {
		t.Errorf("ip = %s, want 10.0.0.77", ip)
	}
	if got != NormalizeMAC(mac.String()) {
		t.Errorf("mac = %s, want %s", got, NormalizeMAC(mac.String()))
	}

	request, err := BuildARPRequest(mac, net.ParseIP("10.0.0.2"), net.ParseIP("10.0.0.77"))
	if err != nil {
		t.Fatalf("BuildARPRequest: %v", err)
	}
	pkt := gopacket.NewPacket(request, layers.LayerTypeEthernet, gopacket.Default)
	if _, _, ok := arpReply(pkt); ok {
		t.Error("who-has request must not count as a reply")
	}
}
