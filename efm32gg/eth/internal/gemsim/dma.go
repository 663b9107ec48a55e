//go:build !tinygo

package gemsim

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"

	"github.com/knieriem/tinygo-gem/efm32gg/eth/internal/gem"
	"github.com/knieriem/tinygo-gem/internal/volatile"
)

const descriptorLen = 8

var broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func queueIndex(qptr, base uint32, n int) (int, error) {
	off := qptr&gem.QPTR_Msk - base
	if off%descriptorLen != 0 || int(off/descriptorLen) >= n {
		return 0, fmt.Errorf("%w: %#08x", ErrQueuePointer, qptr)
	}
	return int(off / descriptorLen), nil
}

// StationAddr returns the address programmed into the first specific
// address filter.
func (d *Device) StationAddr() net.HardwareAddr {
	lo := d.regs.SPECADDR1BOTTOM.Get()
	hi := d.regs.SPECADDR1TOP.Get()
	return net.HardwareAddr{byte(lo), byte(lo >> 8), byte(lo >> 16), byte(lo >> 24), byte(hi), byte(hi >> 8)}
}

// Deliver puts frame on the wire towards the MAC. The frame is written
// into the receive ring the way the DMA engine does it: one buffer after
// the other, each handed to software once it is filled, and the receive
// complete interrupt is raised at the end.
func (d *Device) Deliver(frame []byte) error {
	if len(frame) < 14 || len(frame) > gem.MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameSize, len(frame))
	}
	if !d.regs.NETWORKCTRL.HasBits(gem.NETWORKCTRL_ENBRX) {
		return ErrRxDisabled
	}
	dst := net.HardwareAddr(frame[:6])

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rx == nil {
		return ErrNotAttached
	}
	if !bytes.Equal(dst, broadcast) && !bytes.Equal(dst, d.StationAddr()) {
		d.stats.RxFiltered++
		return ErrFiltered
	}

	ring := d.rx
	k := (len(frame) + gem.BufferSize - 1) / gem.BufferSize
	idx := make([]int, k)
	for i, j := 0, d.rxIdx; i < k; i, j = i+1, nextRx(ring, j) {
		if ring.Desc(j).Ownership() != gem.Hardware {
			d.stats.RxOverruns++
			d.raise(gem.INT_RXOVERRUN)
			d.log.Debug("rx overrun", slog.Int("desc", j))
			return ErrOverrun
		}
		idx[i] = j
	}

	for i, j := range idx {
		copy(ring.Buffer(j), frame[i*gem.BufferSize:])
		st := gem.RxStatus{StartOfFrame: i == 0, EndOfFrame: i == k-1}
		if st.EndOfFrame {
			st.Length = uint16(len(frame))
		}
		desc := ring.Desc(j)
		volatile.Poke(desc.Word(1), gem.EncodeRxStatus(st))
		addr, _, wrap := gem.DecodeRxAddr(desc.Word(0).Get())
		volatile.Poke(desc.Word(0), gem.EncodeRxAddr(addr, gem.Software, wrap))
	}
	d.rxIdx = nextRx(ring, idx[k-1])
	volatile.Poke(&d.regs.RXQPTR, ring.Base()+uint32(d.rxIdx*descriptorLen))

	d.stats.RxFrames++
	d.log.Debug("rx frame", slog.Int("len", len(frame)), slog.Int("first", idx[0]), slog.Int("buffers", k))
	d.raise(gem.INT_RXCMPLT)
	return nil
}

func nextRx(r *gem.RxRing, i int) int {
	if r.Desc(i).Wrap() == gem.Wrap {
		return 0
	}
	return i + 1
}

func nextTx(r *gem.TxRing, i int) int {
	if r.Desc(i).Wrap() == gem.Wrap {
		return 0
	}
	return i + 1
}

// transmit walks the transmit ring from the current position until it
// reads a descriptor owned by software. Only the first descriptor of each
// frame is handed back.
func (d *Device) transmit() {
	var sent [][]byte

	d.mu.Lock()
	ring := d.tx
	if ring == nil {
		d.mu.Unlock()
		return
	}
	var raised uint32
	for {
		head := ring.Desc(d.txIdx)
		st := head.Status()
		if st.Owner == gem.Software {
			break
		}
		frame, next, ok := d.gather(ring, d.txIdx, int(st.Length))
		switch {
		case !ok:
			st.Underrun = true
			raised |= gem.INT_TXUNDERRUN
		case d.txFault != nil:
			f := d.txFault
			d.txFault = nil
			st.RetryLimit, st.LateCollision = f.RetryLimit, f.LateCollision
			st.Underrun, st.Corrupt = f.Underrun, f.Corrupt
			st.Checksum = f.Checksum
			if st.Underrun {
				raised |= gem.INT_TXUNDERRUN
			}
			if st.RetryLimit || st.LateCollision {
				raised |= gem.INT_RTRYLMTORLATECOL
			}
		}
		st.Owner = gem.Software
		volatile.Poke(head.Word(1), gem.EncodeTxStatus(st))

		if st.Failed() {
			d.stats.TxFailed++
			d.log.Debug("tx frame failed", slog.Int("desc", d.txIdx))
		} else {
			d.stats.TxFrames++
			sent = append(sent, frame)
			raised |= gem.INT_TXCMPLT
			d.log.Debug("tx frame", slog.Int("len", len(frame)), slog.Int("first", d.txIdx))
		}
		d.txIdx = next
		volatile.Poke(&d.regs.TXQPTR, ring.Base()+uint32(d.txIdx*descriptorLen))
	}
	sink := d.sink
	d.mu.Unlock()

	if raised != 0 {
		d.raise(raised)
	}
	if sink != nil {
		for _, f := range sent {
			sink(f)
		}
	}
}

// gather collects a frame of length n starting at descriptor i. The
// frame must end with the last buffer flag exactly on its final buffer.
// If it does not, the engine stops at the first descriptor that does not
// fit, which is returned as next.
func (d *Device) gather(ring *gem.TxRing, i, n int) (frame []byte, next int, ok bool) {
	if n == 0 {
		return nil, nextTx(ring, i), false
	}
	k := (n + gem.BufferSize - 1) / gem.BufferSize
	frame = make([]byte, 0, n)
	for b := 0; b < k; b++ {
		desc := ring.Desc(i)
		if b > 0 && desc.Ownership() == gem.Software {
			return nil, i, false
		}
		if desc.LastBuffer() != (b == k-1) {
			return nil, nextTx(ring, i), false
		}
		frame = append(frame, ring.Buffer(i)[:min(gem.BufferSize, n-len(frame))]...)
		i = nextTx(ring, i)
	}
	return frame, i, true
}
