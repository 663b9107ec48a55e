package responder

import (
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knieriem/tinygo-gem/internal/test"
)

var (
	deviceHW   = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	deviceAddr = netip.MustParseAddr("192.168.7.2")
	peerHW     = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	peerAddr   = netip.MustParseAddr("192.168.7.1")
)

func newResponder(t *testing.T) *Responder {
	t.Helper()
	r, err := New(test.NewLogger(), Config{HardwareAddr: deviceHW, Addr: deviceAddr})
	require.NoError(t, err)
	return r
}

// pad extends a frame to whole receive buffers, as the driver hands
// them out.
func pad(frame []byte) []byte {
	n := (len(frame) + 127) / 128 * 128
	return append(frame, make([]byte, n-len(frame))...)
}

func TestNewErrors(t *testing.T) {
	_, err := New(test.NewLogger(), Config{Addr: deviceAddr})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = New(test.NewLogger(), Config{HardwareAddr: deviceHW, Addr: netip.MustParseAddr("::1")})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestARP(t *testing.T) {
	r := newResponder(t)
	req, err := ARPRequest(peerHW, peerAddr, deviceAddr)
	require.NoError(t, err)

	reply := r.Respond(pad(req))
	require.NotNil(t, reply)
	assert.Len(t, reply, 60)
	assert.Equal(t, "arp 192.168.7.2 is-at 02:00:00:00:00:01", Describe(reply))

	packet := gopacket.NewPacket(reply, layers.LayerTypeEthernet, gopacket.Default)
	eth := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, peerHW, eth.DstMAC)
	arp := packet.Layer(layers.LayerTypeARP).(*layers.ARP)
	assert.Equal(t, []byte(peerHW), arp.DstHwAddress)
	assert.Equal(t, uint64(1), r.Stats().ARPReplies)
}

func TestARPOtherTarget(t *testing.T) {
	r := newResponder(t)
	req, err := ARPRequest(peerHW, peerAddr, netip.MustParseAddr("192.168.7.3"))
	require.NoError(t, err)
	assert.Nil(t, r.Respond(req))
	assert.Equal(t, uint64(1), r.Stats().Ignored)
}

func TestEcho(t *testing.T) {
	r := newResponder(t)
	payload := []byte("0123456789abcdefghijklmnopqrstuvwxyz")
	req, err := EchoRequest(peerHW, deviceHW, peerAddr, deviceAddr, 0x1234, 7, payload)
	require.NoError(t, err)
	assert.Equal(t, "icmp 192.168.7.1 > 192.168.7.2 echo-request id 4660 seq 7", Describe(req))

	reply := r.Respond(pad(req))
	require.NotNil(t, reply)

	packet := gopacket.NewPacket(reply, layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, packet.ErrorLayer())
	ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, net.IP(peerAddr.AsSlice()), ip.DstIP)
	icmp := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	assert.Equal(t, uint8(layers.ICMPv4TypeEchoReply), icmp.TypeCode.Type())
	assert.Equal(t, uint16(7), icmp.Seq)
	assert.Equal(t, payload, icmp.Payload)
	assert.Equal(t, uint64(1), r.Stats().EchoReplies)
}

func TestIgnored(t *testing.T) {
	r := newResponder(t)
	frame := make([]byte, 60)
	copy(frame, deviceHW)
	copy(frame[6:], peerHW)
	frame[12], frame[13] = 0x88, 0xb5
	assert.Nil(t, r.Respond(frame))
	assert.Equal(t, uint64(1), r.Stats().Ignored)
}

func TestMalformed(t *testing.T) {
	r := newResponder(t)
	req, err := EchoRequest(peerHW, deviceHW, peerAddr, deviceAddr, 1, 1, nil)
	require.NoError(t, err)
	// Cut into the IPv4 header.
	assert.Nil(t, r.Respond(req[:20]))
	assert.Equal(t, uint64(1), r.Stats().Malformed)
}
