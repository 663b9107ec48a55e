package gem

import (
	"log/slog"
	"strings"
)

// Event is a set of interrupt conditions acknowledged by HandleInterrupt.
// The bit values equal those of the interrupt registers.
type Event uint32

const (
	EventManagementDone Event = INT_MNGMNTDONE
	EventRxComplete     Event = INT_RXCMPLT
	EventTxUnderrun     Event = INT_TXUNDERRUN
	EventTxError        Event = INT_RTRYLMTORLATECOL
	EventBusError       Event = INT_AMBAERR
	EventTxComplete     Event = INT_TXCMPLT
	EventRxOverrun      Event = INT_RXOVERRUN
)

// understoodInterrupts are enabled by New and acknowledged one by one;
// anything else showing up in IFCR is reported as unhandled.
const understoodInterrupts = INT_MNGMNTDONE | INT_RXCMPLT | INT_RXOVERRUN |
	INT_TXCMPLT | INT_TXUNDERRUN | INT_RTRYLMTORLATECOL | INT_AMBAERR

var eventNames = []struct {
	ev   Event
	name string
}{
	{EventManagementDone, "mngmnt-done"},
	{EventRxComplete, "rx-complete"},
	{EventTxUnderrun, "tx-underrun"},
	{EventTxError, "tx-error"},
	{EventBusError, "bus-error"},
	{EventTxComplete, "tx-complete"},
	{EventRxOverrun, "rx-overrun"},
}

// Has reports whether all events of x are in e.
func (e Event) Has(x Event) bool {
	return e&x == x
}

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var b strings.Builder
	for _, n := range eventNames {
		if e&n.ev == 0 {
			continue
		}
		if b.Len() != 0 {
			b.WriteByte('|')
		}
		b.WriteString(n.name)
	}
	return b.String()
}

// HandleInterrupt acknowledges all pending interrupt conditions and
// returns those it understood. It is meant to be called from the ETH
// interrupt handler; the caller decides what to do about received frames
// or completed transmissions.
func (c *Controller) HandleInterrupt() Event {
	regs := c.regs
	pending := regs.IFCR.Get()

	var ev Event
	for _, n := range eventNames {
		bit := uint32(n.ev)
		if pending&bit == 0 {
			continue
		}
		regs.IFCR.Set(bit)
		ev |= n.ev
	}

	if ev.Has(EventRxOverrun) {
		c.stats.rxOverruns.Add(1)
		c.log.Warn("rx overrun")
	}
	if ev.Has(EventTxUnderrun) {
		c.stats.txUnderruns.Add(1)
		c.log.Warn("tx underrun")
	}
	if ev.Has(EventBusError) {
		c.stats.busErrors.Add(1)
		c.log.Error("dma bus error")
	}

	// Understood conditions raised since the first read are left for the
	// next invocation.
	if rest := regs.IFCR.Get() &^ understoodInterrupts; rest != 0 {
		c.stats.unhandled.Add(1)
		c.log.Warn("unhandled interrupt", slog.Uint64("ifcr", uint64(rest)))
		regs.IFCR.Set(rest)
	}

	if c.onEvent != nil && ev != 0 {
		c.onEvent(ev)
	}
	return ev
}
