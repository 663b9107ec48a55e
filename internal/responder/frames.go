package responder

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var broadcastHW = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func serializeNew(l ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opt := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buf, opt, l...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ARPRequest builds a broadcast request for the hardware address of
// target.
func ARPRequest(hw net.HardwareAddr, src, target netip.Addr) ([]byte, error) {
	eth := layers.Ethernet{
		SrcMAC:       hw,
		DstMAC:       broadcastHW,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   hw,
		SourceProtAddress: src.AsSlice(),
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    target.AsSlice(),
	}
	return serializeNew(&eth, &arp)
}

// EchoRequest builds an ICMP echo request.
func EchoRequest(hw, dstHW net.HardwareAddr, src, dst netip.Addr, id, seq uint16, payload []byte) ([]byte, error) {
	eth := layers.Ethernet{
		SrcMAC:       hw,
		DstMAC:       dstHW,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    src.AsSlice(),
		DstIP:    dst.AsSlice(),
	}
	icmp := layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       id,
		Seq:      seq,
	}
	return serializeNew(&eth, &ip, &icmp, gopacket.Payload(payload))
}

// Describe returns a one line summary of an ARP or ICMP frame, falling
// back to the layer names of anything else.
func Describe(frame []byte) string {
	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Lazy)
	if arp, ok := packet.Layer(layers.LayerTypeARP).(*layers.ARP); ok {
		switch arp.Operation {
		case layers.ARPRequest:
			return fmt.Sprintf("arp who-has %v tell %v", net.IP(arp.DstProtAddress), net.IP(arp.SourceProtAddress))
		case layers.ARPReply:
			return fmt.Sprintf("arp %v is-at %v", net.IP(arp.SourceProtAddress), net.HardwareAddr(arp.SourceHwAddress))
		}
	}
	if icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		typ := icmp.TypeCode.String()
		switch icmp.TypeCode.Type() {
		case layers.ICMPv4TypeEchoRequest:
			typ = "echo-request"
		case layers.ICMPv4TypeEchoReply:
			typ = "echo-reply"
		}
		return fmt.Sprintf("icmp %v > %v %s id %d seq %d", ip.SrcIP, ip.DstIP, typ, icmp.Id, icmp.Seq)
	}
	s := ""
	for i, l := range packet.Layers() {
		if i > 0 {
			s += "/"
		}
		s += l.LayerType().String()
	}
	return s
}
