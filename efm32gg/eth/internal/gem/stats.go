package gem

import "sync/atomic"

// Stats are running totals since the controller was created.
type Stats struct {
	RxFrames   uint32
	RxBytes    uint32
	RxDropped  uint32
	RxOverruns uint32

	TxFrames    uint32
	TxBytes     uint32
	TxExhausted uint32
	TxErrors    uint32
	TxUnderruns uint32
	TxReclaimed uint32

	Dangling   uint32
	Duplicates uint32

	BusErrors     uint32
	UnhandledIRQs uint32
}

// counters are read concurrently by host tooling, hence atomic.
type counters struct {
	rxFrames, rxBytes, rxDropped, rxOverruns                atomic.Uint32
	txFrames, txBytes, txExhausted, txErrors, txUnderruns   atomic.Uint32
	txReclaimed, dangling, duplicates, busErrors, unhandled atomic.Uint32
}

func (c *Controller) Stats() Stats {
	s := &c.stats
	return Stats{
		RxFrames:      s.rxFrames.Load(),
		RxBytes:       s.rxBytes.Load(),
		RxDropped:     s.rxDropped.Load(),
		RxOverruns:    s.rxOverruns.Load(),
		TxFrames:      s.txFrames.Load(),
		TxBytes:       s.txBytes.Load(),
		TxExhausted:   s.txExhausted.Load(),
		TxErrors:      s.txErrors.Load(),
		TxUnderruns:   s.txUnderruns.Load(),
		TxReclaimed:   s.txReclaimed.Load(),
		Dangling:      s.dangling.Load(),
		Duplicates:    s.duplicates.Load(),
		BusErrors:     s.busErrors.Load(),
		UnhandledIRQs: s.unhandled.Load(),
	}
}
