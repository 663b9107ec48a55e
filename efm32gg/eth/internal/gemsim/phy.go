//go:build !tinygo

package gemsim

import (
	"sync"

	"github.com/knieriem/tinygo-gem/internal/phy"
)

// Vendor registers of the modelled PHY. They follow the KSZ8091 fitted
// on the SLSTK3701A.
const (
	regInterrupt   = 0x1B // enables in the high byte, latched sources in the low byte
	regPhyControl1 = 0x1E

	intLinkUp   = 1 << 0
	intLinkDown = 1 << 2

	ctl1LinkStatus = 1 << 8
	ctl1Mode100FD  = 0b110
)

// DefaultPHYID is the identifier of a KSZ8091RNB, revision 1.
var DefaultPHYID = phy.ID{ID1: 0x0022, ID2: 0x1561}

// PHY is a register level model of a clause 22 PHY.
type PHY struct {
	mu   sync.Mutex
	addr uint8
	regs [32]uint16
}

func newPHY(addr uint8, id phy.ID, link bool) *PHY {
	p := &PHY{addr: addr & 0x1F}
	p.regs[phy.PhyID1] = id.ID1
	p.regs[phy.PhyID2] = id.ID2
	p.regs[phy.BasicControl] = phy.BCRAutoNegEnable | phy.BCRSpeed100 | phy.BCRFullDuplex
	p.setLink(link)
	return p
}

func (p *PHY) Addr() uint8 {
	return p.addr
}

// SetLink changes the state of the modelled cable and latches the
// corresponding interrupt source.
func (p *PHY) SetLink(up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if up == (p.regs[phy.BasicStatus]&phy.BSRLinkStatus != 0) {
		return
	}
	p.setLink(up)
	if up {
		p.regs[regInterrupt] |= intLinkUp
	} else {
		p.regs[regInterrupt] |= intLinkDown
	}
}

func (p *PHY) setLink(up bool) {
	if up {
		p.regs[phy.BasicStatus] |= phy.BSRLinkStatus | phy.BSRAutoNegComplete
		p.regs[regPhyControl1] = ctl1LinkStatus | ctl1Mode100FD
	} else {
		p.regs[phy.BasicStatus] &^= phy.BSRLinkStatus | phy.BSRAutoNegComplete
		p.regs[regPhyControl1] = 0
	}
}

// Pending reports whether an enabled interrupt source is latched, which
// is the level of the PHY's interrupt output.
func (p *PHY) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.regs[regInterrupt]
	return v&(v>>8) != 0
}

func (p *PHY) read(reg phy.Register) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.regs[reg&0x1F]
	if reg == phy.Vendor(regInterrupt) {
		p.regs[reg] &^= 0xFF
	}
	return v
}

func (p *PHY) write(reg phy.Register, v uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch reg &= 0x1F; reg {
	case phy.PhyID1, phy.PhyID2, phy.BasicStatus, phy.Vendor(regPhyControl1):
		// read only
	case phy.BasicControl:
		// reset completes immediately and restores the defaults
		if v&phy.BCRReset != 0 {
			v = phy.BCRAutoNegEnable | phy.BCRSpeed100 | phy.BCRFullDuplex
			p.regs[regInterrupt] = 0
		}
		p.regs[reg] = v &^ phy.BCRRestartAutoNeg
	case phy.Vendor(regInterrupt):
		p.regs[reg] = v&0xFF00 | p.regs[reg]&0xFF
	default:
		p.regs[reg] = v
	}
}
