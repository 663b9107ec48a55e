package gem

import (
	"io"
	"unsafe"
)

const (
	// BufferSize is the size of the buffer behind each descriptor.
	BufferSize = 128

	// MaxFrameSize is the largest frame the MAC receives or sends.
	MaxFrameSize = 1536
)

// RxRing is the circular list of receive descriptors together with the
// region holding their buffers.
type RxRing struct {
	descs  []RxDesc
	region []byte
}

// NewRxRing lays out descs over region, BufferSize bytes per descriptor.
// All descriptors start out owned by the DMA engine.
func NewRxRing(descs []RxDesc, region []uint32) (*RxRing, error) {
	buf, err := checkRing(len(descs), region, unsafe.Pointer(unsafe.SliceData(descs)))
	if err != nil {
		return nil, err
	}
	r := &RxRing{descs: descs, region: buf}
	for i := range descs {
		wrap := NoWrap
		if i == len(descs)-1 {
			wrap = Wrap
		}
		descs[i].init(r.Buffer(i), wrap)
	}
	return r, nil
}

func (r *RxRing) Len() int {
	return len(r.descs)
}

func (r *RxRing) Desc(i int) *RxDesc {
	return &r.descs[i]
}

// Buffer returns the buffer of descriptor i.
func (r *RxRing) Buffer(i int) []byte {
	return r.region[i*BufferSize : (i+1)*BufferSize]
}

// Base returns the address of the descriptor list as seen by the DMA engine.
func (r *RxRing) Base() uint32 {
	return uint32(uintptr(unsafe.Pointer(&r.descs[0])))
}

func (r *RxRing) index(i int) int {
	return mod(i, len(r.descs))
}

// Dump writes the control words of all descriptors to w.
func (r *RxRing) Dump(w io.Writer) {
	for i := range r.descs {
		d := &r.descs[i]
		dumpDesc(w, i, d.addr.Get(), d.status.Get())
	}
}

// TxRing is the circular list of transmit descriptors together with the
// region holding their buffers.
type TxRing struct {
	descs  []TxDesc
	region []byte
}

// NewTxRing lays out descs over region, BufferSize bytes per descriptor.
// All descriptors start out available to software.
func NewTxRing(descs []TxDesc, region []uint32) (*TxRing, error) {
	buf, err := checkRing(len(descs), region, unsafe.Pointer(unsafe.SliceData(descs)))
	if err != nil {
		return nil, err
	}
	r := &TxRing{descs: descs, region: buf}
	for i := range descs {
		wrap := NoWrap
		if i == len(descs)-1 {
			wrap = Wrap
		}
		descs[i].init(r.Buffer(i), wrap)
	}
	return r, nil
}

func (r *TxRing) Len() int {
	return len(r.descs)
}

func (r *TxRing) Desc(i int) *TxDesc {
	return &r.descs[i]
}

func (r *TxRing) Buffer(i int) []byte {
	return r.region[i*BufferSize : (i+1)*BufferSize]
}

func (r *TxRing) Base() uint32 {
	return uint32(uintptr(unsafe.Pointer(&r.descs[0])))
}

func (r *TxRing) index(i int) int {
	return mod(i, len(r.descs))
}

func (r *TxRing) Dump(w io.Writer) {
	for i := range r.descs {
		d := &r.descs[i]
		dumpDesc(w, i, d.addr.Get(), d.status.Get())
	}
}

func checkRing(n int, region []uint32, descs unsafe.Pointer) ([]byte, error) {
	if n < 2 {
		return nil, ErrRingTooShort
	}
	if len(region)*4 != n*BufferSize {
		return nil, ErrRegionSize
	}
	if uintptr(descs)%descriptorLen != 0 {
		return nil, ErrMisaligned
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&region[0])), len(region)*4), nil
}

func mod(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// distance returns how many steps it takes to get from i to j going
// forward in a ring of n.
func distance(i, j, n int) int {
	return mod(j-i, n)
}
