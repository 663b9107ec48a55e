// Package gem is a driver for the Cadence GEM Ethernet MAC as found in the
// EFM32GG11. Frames are exchanged with the DMA engine through two rings of
// 128 byte buffers; the ownership bit of each descriptor is the only
// synchronisation between the engine and the driver.
//
// All methods of Controller must be called from a single context, either
// with the ETH interrupt disabled or from within its handler.
package gem

import (
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/knieriem/tinygo-gem/internal/volatile"
)

// MDCDivider selects the divider from the peripheral clock to the
// management bus clock. The bus must stay below 2.5MHz.
type MDCDivider uint8

const (
	_ MDCDivider = iota
	MDCDiv8
	MDCDiv16
	MDCDiv32
	MDCDiv48
	MDCDiv64
	MDCDiv96
)

type Config struct {
	// HardwareAddr is the station address used as receive filter.
	HardwareAddr net.HardwareAddr

	// MDCDivider defaults to MDCDiv32, which keeps MDC at 1.5625MHz with
	// a 50MHz reference.
	MDCDivider MDCDivider

	Speed100   bool
	FullDuplex bool

	// ChecksumOffload enables IP/TCP/UDP checksum checking on receive and
	// generation on transmit.
	ChecksumOffload bool

	// BurstLength is the AMBA burst length in words: 1, 4, 8 or 16.
	// Zero selects single accesses.
	BurstLength int

	// GlobalClock is the EFM32 wrapper CTRL register. If nil the
	// peripheral clock is expected to be running already.
	GlobalClock *volatile.Register32

	// OnEvent, if set, is called by HandleInterrupt with the interrupt
	// events just acknowledged.
	OnEvent func(Event)

	Logger *slog.Logger
}

// Capabilities describes what the device offers to a network stack.
type Capabilities struct {
	MTU             int
	ChecksumOffload bool
}

// Controller owns the register block and both descriptor rings.
type Controller struct {
	regs    *Regs
	rx      *RxRing
	tx      *TxRing
	mdio    MDIO
	log     *slog.Logger
	onEvent func(Event)
	csum    bool
	stats   counters

	// staging buffers for gather and scatter
	rxFrame [MaxFrameSize]byte
	txFrame [MaxFrameSize]byte
}

// New configures the MAC to use rx and tx and enables it. An error leaves
// the peripheral in an undefined state; it is not meant to be recovered
// from.
func New(regs *Regs, rx *RxRing, tx *TxRing, cfg Config) (*Controller, error) {
	if regs == nil || rx == nil || tx == nil {
		return nil, fmt.Errorf("%w: missing registers or rings", ErrConfig)
	}
	if len(cfg.HardwareAddr) != 6 {
		return nil, fmt.Errorf("%w: hardware address %q", ErrConfig, cfg.HardwareAddr)
	}
	if cfg.MDCDivider == 0 {
		cfg.MDCDivider = MDCDiv32
	}
	if cfg.MDCDivider > MDCDiv96 {
		return nil, fmt.Errorf("%w: mdc divider %d", ErrConfig, cfg.MDCDivider)
	}
	burst, err := burstBits(cfg.BurstLength)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Controller{
		regs:    regs,
		rx:      rx,
		tx:      tx,
		log:     logger,
		onEvent: cfg.OnEvent,
		csum:    cfg.ChecksumOffload,
	}
	c.mdio = MDIO{regs: regs, log: logger}

	// Allow 1536 byte frames, needed to support 802.1Q VLAN tagging
	ncfg := uint32(cfg.MDCDivider-1)<<NETWORKCFG_MDCCLKDIV_Pos | NETWORKCFG_RX1536BYTEFRAMES
	if cfg.Speed100 {
		ncfg |= NETWORKCFG_SPEED
	}
	if cfg.FullDuplex {
		ncfg |= NETWORKCFG_FULLDUPLEX
	}
	if cfg.ChecksumOffload {
		ncfg |= NETWORKCFG_RXCHKSUMOFFLOADEN
	}
	regs.NETWORKCFG.Set(ncfg)

	// RX buffer size is given in units of 64 bytes; use the full packet
	// buffer memory in both directions.
	dcfg := uint32(BufferSize/64)<<DMACFG_RXBUFSIZE_Pos |
		burst<<DMACFG_AMBABRSTLEN_Pos |
		0b11<<DMACFG_RXPBUFSIZE_Pos |
		DMACFG_TXPBUFSIZE
	if cfg.ChecksumOffload {
		dcfg |= DMACFG_TXPBUFTCPEN
	}
	regs.DMACFG.Set(dcfg)

	regs.RXQPTR.Set(rx.Base() & QPTR_Msk)
	regs.TXQPTR.Set(tx.Base() & QPTR_Msk)

	// The bottom register must be written first; the filter is activated
	// by the write to the top register.
	a := cfg.HardwareAddr
	regs.SPECADDR1BOTTOM.Set(uint32(a[3])<<24 | uint32(a[2])<<16 | uint32(a[1])<<8 | uint32(a[0]))
	regs.SPECADDR1TOP.Set(uint32(a[5])<<8 | uint32(a[4]))

	regs.IFCR.Set(0xFFFFFFFF)
	regs.IENS.Set(understoodInterrupts)

	regs.NETWORKCTRL.Set(NETWORKCTRL_ENBRX | NETWORKCTRL_ENBTX | NETWORKCTRL_MANPORTEN)

	if cfg.GlobalClock != nil {
		cfg.GlobalClock.SetBits(CTRL_GBLCLKEN)
	}

	logger.Info("mac configured",
		slog.String("hwaddr", a.String()),
		slog.Int("rx_descs", rx.Len()),
		slog.Int("tx_descs", tx.Len()))
	return c, nil
}

func burstBits(n int) (uint32, error) {
	switch n {
	case 0, 1:
		return 0x01, nil
	case 4:
		return 0x04, nil
	case 8:
		return 0x08, nil
	case 16:
		return 0x10, nil
	}
	return 0, fmt.Errorf("%w: burst length %d", ErrConfig, n)
}

// MDIO returns the management bus of the MAC.
func (c *Controller) MDIO() *MDIO {
	return &c.mdio
}

func (c *Controller) Capabilities() Capabilities {
	return Capabilities{
		MTU:             MaxFrameSize,
		ChecksumOffload: c.csum,
	}
}

// StartTransmit rings the doorbell, making the DMA engine walk the
// transmit ring from its queue pointer.
func (c *Controller) StartTransmit() {
	c.regs.NETWORKCTRL.SetBits(NETWORKCTRL_TXSTRT)
}

// HaltTransmit stops transmission after the current frame.
func (c *Controller) HaltTransmit() {
	c.regs.NETWORKCTRL.SetBits(NETWORKCTRL_TXHALT)
}

// Disable turns off reception, transmission and all interrupts.
func (c *Controller) Disable() {
	c.regs.Quiesce()
}

// DumpRings writes the descriptors of both rings to w.
func (c *Controller) DumpRings(w io.Writer) {
	io.WriteString(w, "RX ring:\n")
	c.rx.Dump(w)
	io.WriteString(w, "TX ring:\n")
	c.tx.Dump(w)
}
