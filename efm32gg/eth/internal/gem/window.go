package gem

import "log/slog"

// FindRxWindow looks for one complete received frame: a run of software
// owned descriptors from a start of frame buffer to an end of frame
// buffer. end may be smaller than start if the frame wraps around the end
// of the ring.
//
// A hardware owned descriptor invalidates any partial match, as the DMA
// engine may still be filling the buffers of that frame. The ring is
// scanned twice at most, so that a frame starting near the end of the
// ring is found as well.
func (c *Controller) FindRxWindow() (start, end int, ok bool) {
	descs := c.rx.descs
	start, end = -1, -1

	for pass := 0; pass < 2; pass++ {
		for i := range descs {
			d := &descs[i]
			own := d.Ownership()
			if own == Software && d.StartOfFrame() {
				start = i
			}
			if own == Software && d.EndOfFrame() && start >= 0 {
				end = i
				break
			}
			if own == Hardware {
				start, end = -1, -1
			}
		}

		if start < 0 || end >= 0 {
			break
		}
	}

	if start < 0 || end < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// FindTxWindow determines where the next outgoing frame may be written and
// how many buffers are available there. On the way it reclaims the
// descriptors of frames the DMA engine has finished with.
func (c *Controller) FindTxWindow() (start, n int, ok bool) {
	ring := c.tx
	size := ring.Len()

	qp, ok := c.txQueueIndex()
	if !ok {
		return 0, 0, false
	}

	// Walk forward from the queue pointer, wrapping around if necessary,
	// to the first descriptor available to software. This is where the
	// window starts.
	start = -1
	for i := 0; i < size; i++ {
		j := ring.index(qp + i)
		if ring.descs[j].Ownership() == Software {
			start = j
			break
		}
	}
	if start < 0 {
		return 0, 0, false
	}

	c.reclaim(qp, start)

	// Count the contiguous descriptors available from start.
	for n < size && ring.descs[ring.index(start+n)].Ownership() == Software {
		n++
	}
	return start, n, true
}

// txQueueIndex converts the DMA engine's transmit queue pointer into a
// ring index.
func (c *Controller) txQueueIndex() (int, bool) {
	ptr := c.regs.TXQPTR.Get() & QPTR_Msk
	off := ptr - c.tx.Base()
	i := int(off / descriptorLen)
	if off%descriptorLen != 0 || i >= c.tx.Len() {
		c.log.Warn("tx queue pointer outside ring", slog.Uint64("qptr", uint64(ptr)))
		return 0, false
	}
	return i, true
}

// reclaim walks backward from the queue pointer over the descriptors the
// DMA engine has already passed, down to and including start.
//
// The engine marks only the first descriptor of a transmitted frame as
// used; the remaining buffers of the frame stay hardware owned. Frame
// extents are therefore recovered from the last buffer flags: walking
// backward, a hardware owned descriptor with the last buffer flag is the
// tail of a frame, and the first software owned descriptor before it is
// that frame's head. Everything from head to tail is claimed back.
//
// Descriptors that do not fit that pattern are left alone and reported.
// The walk stops there, so a misclassification costs ring capacity until
// the next pass, never a frame.
func (c *Controller) reclaim(qp, start int) {
	ring := c.tx
	size := ring.Len()
	steps := mod(qp-start-1, size) + 1

	// Hardware owned descriptors right behind the queue pointer belong to
	// the frame being sent when the engine is active.
	inFlight := c.regs.TXSTATUS.HasBits(TXSTATUS_TXGO)
	leading := true
	tail := -1

	for k := 0; k < steps; k++ {
		i := ring.index(qp - 1 - k)
		d := &ring.descs[i]
		own := d.Ownership()
		last := d.LastBuffer()

		if tail >= 0 {
			switch {
			case own == Software:
				c.reclaimFrame(i, tail)
				tail = -1
			case last:
				c.reportDangling(ring.index(i+1), tail)
				return
			}
			continue
		}

		if own == Hardware && !last {
			if leading && inFlight {
				continue
			}
			c.reportDangling(i, i)
			return
		}
		leading = false

		if own == Hardware {
			tail = i
			continue
		}
		if !last {
			continue
		}
		// A software owned last buffer is a single buffer frame the
		// engine has sent, unless the buffers before it are still
		// hardware owned.
		if k+1 < steps {
			p := &ring.descs[ring.index(i-1)]
			if p.Ownership() == Hardware && !p.LastBuffer() {
				c.stats.duplicates.Add(1)
				c.log.Warn("tx descriptor may be duplicate",
					slog.Int("index", i),
					slog.Int("qptr", qp))
				return
			}
		}
		c.reclaimFrame(i, i)
	}
	if tail >= 0 {
		c.reportDangling(tail, tail)
	}
}

func (c *Controller) reclaimFrame(head, tail int) {
	ring := c.tx
	st := ring.descs[head].Status()
	if st.Failed() {
		c.stats.txErrors.Add(1)
		c.log.Warn("tx frame not sent",
			slog.Int("head", head),
			slog.Bool("retry_limit", st.RetryLimit),
			slog.Bool("underrun", st.Underrun),
			slog.Bool("corrupt", st.Corrupt),
			slog.Bool("late_collision", st.LateCollision),
			slog.String("checksum", st.Checksum.String()))
	}
	n := distance(head, tail, ring.Len()) + 1
	for i := 0; i < n; i++ {
		ring.descs[ring.index(head+i)].Claim()
	}
	c.stats.txReclaimed.Add(uint32(n))
}

func (c *Controller) reportDangling(from, to int) {
	c.stats.dangling.Add(1)
	c.log.Warn("tx descriptor dangling",
		slog.Int("from", from),
		slog.Int("to", to))
}
