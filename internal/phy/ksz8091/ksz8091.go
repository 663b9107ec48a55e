// Package ksz8091 drives the Microchip (Micrel) KSZ8091 RMII PHY found on
// the SLSTK3701A starter kit.
package ksz8091

import (
	"log/slog"

	"github.com/knieriem/tinygo-gem/internal/phy"
)

var OUI = phy.OUI{0x00, 0x10, 0xA1}

const Model = 0x16

const (
	regInterruptControl = 0x1B // Interrupt Control/Status
	regPhyControl1      = 0x1E

	// Operation mode indication in PHY Control 1.
	ctl1LinkStatus = 1 << 8
	ctl1ModeMask   = 0b111
	ctl1Mode10HD   = 0b001
	ctl1Mode100HD  = 0b010
	ctl1Mode10FD   = 0b101
	ctl1Mode100FD  = 0b110
)

// Interrupt sources reported in the low byte of the interrupt
// control/status register; the enable bits are the same shifted by 8.
type Interrupt uint8

const (
	IntLinkUp Interrupt = 1 << iota
	IntRemoteFault
	IntLinkDown
	IntLinkPartnerAck
	IntParallelDetectFault
	IntPageReceived
	IntReceiveError
	IntJabber
)

var intNames = [8]string{
	"link-up",
	"remote-fault",
	"link-down",
	"link-partner-ack",
	"parallel-detect-fault",
	"page-received",
	"receive-error",
	"jabber",
}

func (i Interrupt) String() string {
	s := ""
	for bit, name := range intNames {
		if i&(1<<bit) == 0 {
			continue
		}
		if s != "" {
			s += " "
		}
		s += name
	}
	return s
}

type PHY struct {
	addr uint8
	mdio phy.MDIO
	log  *slog.Logger
}

func New(mdio phy.MDIO, addr uint8, logger *slog.Logger) *PHY {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PHY{addr: addr, mdio: mdio, log: logger}
}

func (p *PHY) Addr() uint8 {
	return p.addr
}

func (p *PHY) OUI() (phy.OUI, error) {
	id, err := phy.ReadID(p.mdio, p.addr)
	if err != nil {
		return phy.OUI{}, err
	}
	return id.OUI(), nil
}

func (p *PHY) Reset() error {
	if err := p.mdio.WriteReg(p.addr, phy.BasicControl, phy.BCRReset); err != nil {
		return err
	}
	for {
		bcr, err := p.mdio.ReadReg(p.addr, phy.BasicControl)
		if err != nil {
			return err
		}
		if bcr&phy.BCRReset == 0 {
			return nil
		}
	}
}

func (p *PHY) LinkStatus() (phy.LinkStatus, error) {
	var lst phy.LinkStatus
	bsr, err := p.mdio.ReadReg(p.addr, phy.BasicStatus)
	if err != nil {
		return lst, err
	}
	if bsr&phy.BSRLinkStatus == 0 {
		return lst, nil
	}
	lst.Up = true
	lst.AutoNegotiated = bsr&phy.BSRAutoNegComplete != 0

	ctl1, err := p.mdio.ReadReg(p.addr, phy.Vendor(regPhyControl1))
	if err != nil {
		return lst, err
	}
	switch ctl1 & ctl1ModeMask {
	case ctl1Mode10HD:
		lst.Speed = 10
	case ctl1Mode100HD:
		lst.Speed = 100
	case ctl1Mode10FD:
		lst.Speed = 10
		lst.FullDuplex = true
	case ctl1Mode100FD:
		lst.Speed = 100
		lst.FullDuplex = true
	default:
		// still negotiating
		lst.AutoNegotiated = false
	}
	return lst, nil
}

// EnableInterrupts makes the PHY raise its interrupt line on link-up and
// link-down.
func (p *PHY) EnableInterrupts() error {
	return p.mdio.WriteReg(p.addr, phy.Vendor(regInterruptControl), uint16(IntLinkUp|IntLinkDown)<<8)
}

// HandleInterrupt reads (and thereby clears) the interrupt status and
// returns the sources that were pending.
func (p *PHY) HandleInterrupt() (Interrupt, error) {
	v, err := p.mdio.ReadReg(p.addr, phy.Vendor(regInterruptControl))
	if err != nil {
		return 0, err
	}
	irq := Interrupt(v)
	p.log.Debug("phy irq", slog.String("sources", irq.String()))
	return irq, nil
}
