// Package responder answers ARP requests and ICMP echo requests for a
// single IPv4 address. It stands in for a network stack when exercising
// the Ethernet driver on a host.
package responder

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

var ErrConfig = errors.New("responder: invalid configuration")

type Config struct {
	HardwareAddr net.HardwareAddr
	Addr         netip.Addr
}

type Stats struct {
	ARPReplies  uint64
	EchoReplies uint64
	Ignored     uint64
	Malformed   uint64
}

type Responder struct {
	l    *logrus.Logger
	hw   net.HardwareAddr
	addr netip.Addr
	buf  gopacket.SerializeBuffer

	arpReplies, echoReplies, ignored, malformed atomic.Uint64
}

func New(l *logrus.Logger, cfg Config) (*Responder, error) {
	if len(cfg.HardwareAddr) != 6 {
		return nil, fmt.Errorf("%w: hardware address %q", ErrConfig, cfg.HardwareAddr)
	}
	if !cfg.Addr.Is4() {
		return nil, fmt.Errorf("%w: %v is not an IPv4 address", ErrConfig, cfg.Addr)
	}
	return &Responder{
		l:    l,
		hw:   cfg.HardwareAddr,
		addr: cfg.Addr,
		buf:  gopacket.NewSerializeBuffer(),
	}, nil
}

func (r *Responder) Stats() Stats {
	return Stats{
		ARPReplies:  r.arpReplies.Load(),
		EchoReplies: r.echoReplies.Load(),
		Ignored:     r.ignored.Load(),
		Malformed:   r.malformed.Load(),
	}
}

// Respond looks at a received frame and returns the reply to send, or nil
// if the frame needs no answer. Trailing bytes after the IP datagram, as
// left by whole receive buffers, are ignored. The reply is valid until
// the next call.
func (r *Responder) Respond(frame []byte) []byte {
	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Lazy)
	eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		r.malformed.Add(1)
		return nil
	}
	if eth.EthernetType != layers.EthernetTypeARP && eth.EthernetType != layers.EthernetTypeIPv4 {
		r.ignored.Add(1)
		return nil
	}
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		r.malformed.Add(1)
		r.l.WithError(errLayer.Error()).Debug("Dropping malformed frame")
		return nil
	}

	var reply []byte
	var err error
	if arp, ok := packet.Layer(layers.LayerTypeARP).(*layers.ARP); ok {
		reply, err = r.arpReply(eth, arp)
		if reply != nil {
			r.arpReplies.Add(1)
		}
	} else if icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		reply, err = r.echoReply(eth, ip, icmp)
		if reply != nil {
			r.echoReplies.Add(1)
		}
	}
	if err != nil {
		r.l.WithError(err).Error("Failed to build reply")
		return nil
	}
	if reply == nil {
		r.ignored.Add(1)
	}
	return reply
}

func (r *Responder) arpReply(eth *layers.Ethernet, arp *layers.ARP) ([]byte, error) {
	if arp.Operation != layers.ARPRequest || arp.Protocol != layers.EthernetTypeIPv4 {
		return nil, nil
	}
	target, ok := netip.AddrFromSlice(arp.DstProtAddress)
	if !ok || target != r.addr {
		return nil, nil
	}
	r.l.WithField("from", net.IP(arp.SourceProtAddress)).Debug("Answering ARP request")

	ethReply := layers.Ethernet{
		SrcMAC:       r.hw,
		DstMAC:       eth.SrcMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arpReply := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   r.hw,
		SourceProtAddress: arp.DstProtAddress,
		DstHwAddress:      arp.SourceHwAddress,
		DstProtAddress:    arp.SourceProtAddress,
	}
	return r.serialize(&ethReply, &arpReply)
}

func (r *Responder) echoReply(eth *layers.Ethernet, ip *layers.IPv4, icmp *layers.ICMPv4) ([]byte, error) {
	if icmp.TypeCode.Type() != layers.ICMPv4TypeEchoRequest {
		return nil, nil
	}
	dst, ok := netip.AddrFromSlice(ip.DstIP.To4())
	if !ok || dst != r.addr {
		return nil, nil
	}
	r.l.WithField("from", ip.SrcIP).WithField("seq", icmp.Seq).Debug("Answering echo request")

	ethReply := layers.Ethernet{
		SrcMAC:       r.hw,
		DstMAC:       eth.SrcMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ipReply := layers.IPv4{
		Version:  4,
		TTL:      64,
		Id:       ip.Id,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    ip.DstIP,
		DstIP:    ip.SrcIP,
	}
	icmpReply := layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0),
		Id:       icmp.Id,
		Seq:      icmp.Seq,
	}
	return r.serialize(&ethReply, &ipReply, &icmpReply, gopacket.Payload(icmp.Payload))
}

func (r *Responder) serialize(l ...gopacket.SerializableLayer) ([]byte, error) {
	opt := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(r.buf, opt, l...); err != nil {
		return nil, err
	}
	return r.buf.Bytes(), nil
}
