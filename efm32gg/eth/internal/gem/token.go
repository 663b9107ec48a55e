package gem

import (
	"fmt"
	"log/slog"
)

// RxToken grants access to one received frame. It is valid until it is
// consumed or until the next call to Receive or Transmit.
type RxToken struct {
	c          *Controller
	start, end int
}

// TxToken grants access to a window of transmit buffers, starting at
// descriptor start.
type TxToken struct {
	c        *Controller
	start, n int
}

// Receive returns a token for the next received frame together with a
// token for a reply. It reports false if no complete frame is available
// or no transmit buffer is free.
func (c *Controller) Receive() (RxToken, TxToken, bool) {
	start, end, ok := c.FindRxWindow()
	if !ok {
		return RxToken{}, TxToken{}, false
	}
	txStart, n, ok := c.FindTxWindow()
	if !ok {
		return RxToken{}, TxToken{}, false
	}
	return RxToken{c: c, start: start, end: end}, TxToken{c: c, start: txStart, n: n}, true
}

// Transmit returns a token for sending a frame, if any transmit buffer
// is free.
func (c *Controller) Transmit() (TxToken, bool) {
	start, n, ok := c.FindTxWindow()
	if !ok {
		return TxToken{}, false
	}
	return TxToken{c: c, start: start, n: n}, true
}

// Len returns the number of buffers holding the frame.
func (t RxToken) Len() int {
	return distance(t.start, t.end, t.c.rx.Len()) + 1
}

// Consume copies the frame out of the ring, hands the buffers back to
// the DMA engine, and calls f with the frame. The slice passed to f is
// a whole number of buffers long; trailing bytes beyond the frame are
// unspecified. It must not be retained after f returns.
func (t RxToken) Consume(f func(frame []byte) error) error {
	c := t.c
	ring := c.rx
	k := t.Len()

	if k*BufferSize > MaxFrameSize {
		for i := 0; i < k; i++ {
			ring.descs[ring.index(t.start+i)].Release()
		}
		c.stats.rxDropped.Add(1)
		c.log.Warn("rx frame dropped",
			slog.Int("start", t.start),
			slog.Int("end", t.end))
		return ErrFrameTooLong
	}

	frame := c.rxFrame[:k*BufferSize]
	for i := 0; i < k; i++ {
		j := ring.index(t.start + i)
		copy(frame[i*BufferSize:], ring.Buffer(j))
		ring.descs[j].Release()
	}
	c.stats.rxFrames.Add(1)
	c.stats.rxBytes.Add(uint32(len(frame)))
	return f(frame)
}

// Cap returns the largest frame the token can carry.
func (t TxToken) Cap() int {
	return min(t.n*BufferSize, MaxFrameSize)
}

// Consume lets f fill in a frame of n bytes, then queues it for
// transmission and starts the DMA engine. If the frame does not fit the
// window, ErrExhausted is returned and f is not called. If f fails, the
// ring is left untouched.
func (t TxToken) Consume(n int, f func(buf []byte) error) error {
	c := t.c
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	if n > t.Cap() {
		c.stats.txExhausted.Add(1)
		return ErrExhausted
	}

	buf := c.txFrame[:n]
	if err := f(buf); err != nil {
		return err
	}

	ring := c.tx
	k := (n + BufferSize - 1) / BufferSize
	for i := 0; i < k; i++ {
		j := ring.index(t.start + i)
		copy(ring.Buffer(j), buf[i*BufferSize:])

		// The first descriptor carries the length of the whole frame.
		length := 0
		if i == 0 {
			length = n
		}
		d := &ring.descs[j]
		d.prepare(length, i == k-1)
		d.Release()
	}
	c.StartTransmit()

	c.stats.txFrames.Add(1)
	c.stats.txBytes.Add(uint32(n))
	return nil
}
