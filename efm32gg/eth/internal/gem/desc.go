package gem

import (
	"unsafe"

	"github.com/knieriem/tinygo-gem/internal/volatile"
)

// Ownership tells which side may act on a descriptor's buffer.
type Ownership uint8

const (
	Hardware Ownership = iota
	Software
)

func (o Ownership) String() string {
	if o == Software {
		return "Software"
	}
	return "Hardware"
}

// ListWrap marks the physically last descriptor of a ring.
type ListWrap uint8

const (
	NoWrap ListWrap = iota
	Wrap
)

func (w ListWrap) String() string {
	if w == Wrap {
		return "Wrap"
	}
	return "NoWrap"
}

// RX descriptor layout. Ownership and wrap live in the address word.
const (
	rxAddrOwn     = 1 << 0 // set: software owned
	rxAddrWrap    = 1 << 1
	rxAddrMsk     = 0xFFFFFFFC
	rxStatLenMsk  = 0x1FFF
	rxStatSOF     = 1 << 14
	rxStatEOF     = 1 << 15
	descriptorLen = 8
)

// TX descriptor status word.
const (
	txStatLenMsk   = 0x3FFF
	txStatLast     = 1 << 15
	txStatCsumPos  = 20
	txStatCsumMsk  = 0b111 << txStatCsumPos
	txStatLateCol  = 1 << 26
	txStatCorrupt  = 1 << 27
	txStatUnderrun = 1 << 28
	txStatRetryLim = 1 << 29
	txStatWrap     = 1 << 30
	txStatOwn      = 1 << 31 // set: software owned
)

// EncodeRxAddr builds the first word of an RX descriptor.
func EncodeRxAddr(addr uint32, own Ownership, wrap ListWrap) uint32 {
	w := addr & rxAddrMsk
	if own == Software {
		w |= rxAddrOwn
	}
	if wrap == Wrap {
		w |= rxAddrWrap
	}
	return w
}

// DecodeRxAddr splits the first word of an RX descriptor.
func DecodeRxAddr(w uint32) (addr uint32, own Ownership, wrap ListWrap) {
	addr = w & rxAddrMsk
	if w&rxAddrOwn != 0 {
		own = Software
	}
	if w&rxAddrWrap != 0 {
		wrap = Wrap
	}
	return addr, own, wrap
}

// RxStatus is the second word of an RX descriptor, written by the DMA
// engine.
type RxStatus struct {
	Length       uint16 // frame length, valid on the end of frame buffer
	StartOfFrame bool
	EndOfFrame   bool
}

func EncodeRxStatus(s RxStatus) uint32 {
	w := uint32(s.Length) & rxStatLenMsk
	if s.StartOfFrame {
		w |= rxStatSOF
	}
	if s.EndOfFrame {
		w |= rxStatEOF
	}
	return w
}

func DecodeRxStatus(w uint32) RxStatus {
	return RxStatus{
		Length:       uint16(w & rxStatLenMsk),
		StartOfFrame: w&rxStatSOF != 0,
		EndOfFrame:   w&rxStatEOF != 0,
	}
}

// ChecksumError is the reason reported by the DMA engine when checksum
// generation failed for a frame.
type ChecksumError uint8

const (
	ChecksumOK ChecksumError = iota
	ChecksumVLANHeader
	ChecksumSNAPHeader
	ChecksumNotIP
	ChecksumUnknownType
	ChecksumFragment
	ChecksumNotTCPUDP
	ChecksumPrematureEnd
)

var checksumErrorNames = [...]string{
	"ok",
	"incomplete VLAN header",
	"incomplete SNAP header",
	"not IP or invalid IP header",
	"not VLAN, SNAP or IP",
	"unsupported fragmentation",
	"not TCP or UDP",
	"premature end of frame",
}

func (e ChecksumError) String() string {
	return checksumErrorNames[e&7]
}

// TxStatus is the second word of a TX descriptor.
type TxStatus struct {
	Length        uint16
	Last          bool
	Checksum      ChecksumError
	LateCollision bool
	Corrupt       bool
	Underrun      bool
	RetryLimit    bool
	Wrap          ListWrap
	Owner         Ownership
}

// Failed reports whether the DMA engine flagged the frame as not sent.
func (s TxStatus) Failed() bool {
	return s.Checksum != ChecksumOK || s.LateCollision || s.Corrupt || s.Underrun || s.RetryLimit
}

func EncodeTxStatus(s TxStatus) uint32 {
	w := uint32(s.Length) & txStatLenMsk
	w |= uint32(s.Checksum&7) << txStatCsumPos
	if s.Last {
		w |= txStatLast
	}
	if s.LateCollision {
		w |= txStatLateCol
	}
	if s.Corrupt {
		w |= txStatCorrupt
	}
	if s.Underrun {
		w |= txStatUnderrun
	}
	if s.RetryLimit {
		w |= txStatRetryLim
	}
	if s.Wrap == Wrap {
		w |= txStatWrap
	}
	if s.Owner == Software {
		w |= txStatOwn
	}
	return w
}

func DecodeTxStatus(w uint32) TxStatus {
	s := TxStatus{
		Length:        uint16(w & txStatLenMsk),
		Last:          w&txStatLast != 0,
		Checksum:      ChecksumError((w & txStatCsumMsk) >> txStatCsumPos),
		LateCollision: w&txStatLateCol != 0,
		Corrupt:       w&txStatCorrupt != 0,
		Underrun:      w&txStatUnderrun != 0,
		RetryLimit:    w&txStatRetryLim != 0,
	}
	if w&txStatWrap != 0 {
		s.Wrap = Wrap
	}
	if w&txStatOwn != 0 {
		s.Owner = Software
	}
	return s
}

// RxDesc is a receive buffer descriptor as read by the DMA engine.
type RxDesc struct {
	addr   volatile.Register32
	status volatile.Register32
}

func (d *RxDesc) init(buf []byte, wrap ListWrap) {
	d.addr.Set(EncodeRxAddr(bufAddr(buf), Hardware, wrap))
	d.status.Set(0)
}

func (d *RxDesc) Addr() uint32 {
	return d.addr.Get() & rxAddrMsk
}

func (d *RxDesc) Ownership() Ownership {
	_, own, _ := DecodeRxAddr(d.addr.Get())
	return own
}

func (d *RxDesc) Wrap() ListWrap {
	_, _, wrap := DecodeRxAddr(d.addr.Get())
	return wrap
}

func (d *RxDesc) Status() RxStatus {
	return DecodeRxStatus(d.status.Get())
}

func (d *RxDesc) StartOfFrame() bool {
	return d.status.HasBits(rxStatSOF)
}

func (d *RxDesc) EndOfFrame() bool {
	return d.status.HasBits(rxStatEOF)
}

// Release hands the buffer back to the DMA engine after its content has
// been consumed.
func (d *RxDesc) Release() {
	addr, _, wrap := DecodeRxAddr(d.addr.Get())
	d.addr.Set(EncodeRxAddr(addr, Hardware, wrap))
}

// Word returns the i-th control word, 0 or 1. It is meant for peripheral
// models and diagnostics.
func (d *RxDesc) Word(i int) *volatile.Register32 {
	if i == 0 {
		return &d.addr
	}
	return &d.status
}

// TxDesc is a transmit buffer descriptor as read by the DMA engine.
type TxDesc struct {
	addr   volatile.Register32
	status volatile.Register32
}

func (d *TxDesc) init(buf []byte, wrap ListWrap) {
	d.addr.Set(bufAddr(buf))
	d.status.Set(EncodeTxStatus(TxStatus{Wrap: wrap, Owner: Software}))
}

func (d *TxDesc) Addr() uint32 {
	return d.addr.Get()
}

func (d *TxDesc) Ownership() Ownership {
	if d.status.HasBits(txStatOwn) {
		return Software
	}
	return Hardware
}

func (d *TxDesc) Wrap() ListWrap {
	if d.status.HasBits(txStatWrap) {
		return Wrap
	}
	return NoWrap
}

func (d *TxDesc) Status() TxStatus {
	return DecodeTxStatus(d.status.Get())
}

func (d *TxDesc) Length() int {
	return int(d.status.Get() & txStatLenMsk)
}

func (d *TxDesc) LastBuffer() bool {
	return d.status.HasBits(txStatLast)
}

// prepare sets length and last buffer flag, leaving ownership alone.
func (d *TxDesc) prepare(length int, last bool) {
	w := d.status.Get() & (txStatWrap | txStatOwn)
	w |= uint32(length) & txStatLenMsk
	if last {
		w |= txStatLast
	}
	d.status.Set(w)
}

// Release queues the buffer for transmission.
func (d *TxDesc) Release() {
	d.status.ClearBits(txStatOwn)
}

// Claim takes the descriptor back for software, whatever the peripheral
// reported, and clears length, last buffer and error flags. The wrap bit
// is preserved.
func (d *TxDesc) Claim() {
	d.status.Set(d.status.Get()&txStatWrap | txStatOwn)
}

// Word returns the i-th control word, 0 or 1.
func (d *TxDesc) Word(i int) *volatile.Register32 {
	if i == 0 {
		return &d.addr
	}
	return &d.status
}

func bufAddr(buf []byte) uint32 {
	return uint32(uintptr(unsafe.Pointer(&buf[0])))
}
