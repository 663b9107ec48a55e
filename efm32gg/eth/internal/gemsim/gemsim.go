//go:build !tinygo

// Package gemsim models the GEM Ethernet MAC of the EFM32GG11 together
// with the PHY on its management bus, so the driver can run unchanged on
// a host.
//
// The model acts on register stores as the peripheral would: the
// interrupt flag register is write one to clear, a write to the PHY
// maintenance register runs the management frame against the PHY, and
// the transmit doorbell makes the DMA engine walk the transmit ring. The
// engine runs synchronously within the store.
package gemsim

import (
	"log/slog"
	"sync"

	"github.com/knieriem/tinygo-gem/efm32gg/eth/internal/gem"
	"github.com/knieriem/tinygo-gem/internal/phy"
	"github.com/knieriem/tinygo-gem/internal/volatile"
)

type Config struct {
	PHYAddr uint8

	// PHYID defaults to DefaultPHYID.
	PHYID phy.ID

	// LinkDown starts the model with the cable unplugged.
	LinkDown bool

	Logger *slog.Logger
}

// Stats count what happened on the modelled wire.
type Stats struct {
	RxFrames   uint64
	RxFiltered uint64
	RxOverruns uint64
	TxFrames   uint64
	TxFailed   uint64
}

// Device is the modelled peripheral.
type Device struct {
	regs *gem.Regs
	phy  *PHY
	log  *slog.Logger
	irq  chan struct{}

	mu      sync.Mutex
	rx      *gem.RxRing
	tx      *gem.TxRing
	rxIdx   int
	txIdx   int
	sink    func(frame []byte)
	txFault *gem.TxStatus
	stats   Stats
}

func New(cfg Config) *Device {
	if cfg.PHYID == (phy.ID{}) {
		cfg.PHYID = DefaultPHYID
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Device{
		regs: new(gem.Regs),
		phy:  newPHY(cfg.PHYAddr, cfg.PHYID, !cfg.LinkDown),
		log:  logger,
		irq:  make(chan struct{}, 1),
	}
	r := d.regs
	volatile.Poke(&r.NETWORKSTATUS, gem.NETWORKSTATUS_MANDONE)
	volatile.Poke(&r.IMASK, 0xFFFFFFFF)

	volatile.Hook(&r.IFCR, func(old, v uint32) uint32 {
		return old &^ v
	})
	volatile.Hook(&r.IENS, func(_, v uint32) uint32 {
		volatile.PokeBits(&r.IMASK, 0, v)
		d.notify()
		return 0
	})
	volatile.Hook(&r.IENC, func(_, v uint32) uint32 {
		volatile.PokeBits(&r.IMASK, v, 0)
		return 0
	})
	volatile.Hook(&r.PHYMNGMNT, d.manage)
	volatile.Hook(&r.NETWORKCTRL, d.control)
	return d
}

// Close detaches the model from its registers.
func (d *Device) Close() {
	r := d.regs
	for _, reg := range []*volatile.Register32{&r.IFCR, &r.IENS, &r.IENC, &r.PHYMNGMNT, &r.NETWORKCTRL} {
		volatile.Unhook(reg)
	}
}

// Regs returns the register block to hand to the driver.
func (d *Device) Regs() *gem.Regs {
	return d.regs
}

func (d *Device) PHY() *PHY {
	return d.phy
}

// Attach gives the DMA engine access to the rings the driver has
// programmed into the queue pointers. A host model cannot follow the
// 32-bit bus addresses by itself.
func (d *Device) Attach(rx *gem.RxRing, tx *gem.TxRing) error {
	rxIdx, err := queueIndex(d.regs.RXQPTR.Get(), rx.Base(), rx.Len())
	if err != nil {
		return err
	}
	txIdx, err := queueIndex(d.regs.TXQPTR.Get(), tx.Base(), tx.Len())
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.rx, d.tx = rx, tx
	d.rxIdx, d.txIdx = rxIdx, txIdx
	d.mu.Unlock()
	return nil
}

// OnTransmit installs a function receiving every frame the MAC puts on
// the wire. It is called without locks held and may call Deliver.
func (d *Device) OnTransmit(f func(frame []byte)) {
	d.mu.Lock()
	d.sink = f
	d.mu.Unlock()
}

// FailNext makes the transmission of the next frame fail with the error
// flags of st.
func (d *Device) FailNext(st gem.TxStatus) {
	d.mu.Lock()
	d.txFault = &st
	d.mu.Unlock()
}

// Interrupts returns a channel that receives a value whenever an enabled
// interrupt condition is raised.
func (d *Device) Interrupts() <-chan struct{} {
	return d.irq
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// raise sets interrupt flags and signals the interrupt line if any of
// them is enabled.
func (d *Device) raise(flags uint32) {
	volatile.PokeBits(&d.regs.IFCR, flags, 0)
	d.notify()
}

func (d *Device) notify() {
	if d.regs.IFCR.Get()&^d.regs.IMASK.Get() == 0 {
		return
	}
	select {
	case d.irq <- struct{}{}:
	default:
	}
}

// manage runs a management frame written to PHYMNGMNT.
func (d *Device) manage(_, v uint32) uint32 {
	if !d.regs.NETWORKCTRL.HasBits(gem.NETWORKCTRL_MANPORTEN) {
		// The frame is never shifted out; MANDONE stays clear.
		volatile.PokeBits(&d.regs.NETWORKSTATUS, 0, gem.NETWORKSTATUS_MANDONE)
		return v
	}
	op, addr, reg, data := gem.DecodeFrame(v)
	switch {
	case addr != d.phy.Addr():
		// Nobody drives the data line, it floats high.
		if op == gem.MDIORead {
			v |= 0xFFFF
		}
	case op == gem.MDIORead:
		v = v&^0xFFFF | uint32(d.phy.read(reg))
	case op == gem.MDIOWrite:
		d.phy.write(reg, data)
	}
	volatile.PokeBits(&d.regs.NETWORKSTATUS, gem.NETWORKSTATUS_MANDONE, 0)
	d.raise(gem.INT_MNGMNTDONE)
	return v
}

// control handles stores to NETWORKCTRL. The doorbell bits read as zero.
func (d *Device) control(_, v uint32) uint32 {
	if v&gem.NETWORKCTRL_TXSTRT != 0 && v&gem.NETWORKCTRL_ENBTX != 0 {
		d.transmit()
	}
	return v &^ (gem.NETWORKCTRL_TXSTRT | gem.NETWORKCTRL_TXHALT)
}
