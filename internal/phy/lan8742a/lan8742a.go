// Package lan8742a drives the Microchip (SMSC) LAN8742A RMII PHY.
package lan8742a

import (
	"github.com/knieriem/tinygo-gem/internal/phy"
)

var OUI = phy.OUI{0x00, 0x80, 0x0F}

const Model = 0x13

const (
	regSSR = 31 // Special Control/Status Register

	ssrAUTODONE     = 1 << 12
	ssrHCDSPEEDPos  = 2
	ssrHDCSPEEDMask = 0b111 << 2
)

type PHY struct {
	addr     uint8
	mdio     phy.MDIO
	busyWait func()
}

func New(mdio phy.MDIO, addr uint8) *PHY {
	return &PHY{addr: addr, mdio: mdio}
}

// SetBusyWait installs a function called between polls while waiting
// for a reset to complete.
func (p *PHY) SetBusyWait(wait func()) {
	p.busyWait = wait
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
			break
		}
		if p.busyWait != nil {
			p.busyWait()
		}
	}
	return nil
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

	ssr, err := p.mdio.ReadReg(p.addr, phy.Vendor(regSSR))
	if err != nil {
		return lst, err
	}

	if ssr&ssrAUTODONE != 0 {
		lst.AutoNegotiated = true
	} else {
		return lst, nil
	}

	fullDuplex := true
	switch (ssr & ssrHDCSPEEDMask) >> ssrHCDSPEEDPos {
	case 0b001:
		fullDuplex = false
		fallthrough
	case 0b101:
		lst.Speed = 10
	case 0b010:
		fullDuplex = false
		fallthrough
	case 0b110:
		lst.Speed = 100
	default:
		lst.AutoNegotiated = false
		return lst, nil
	}
	lst.FullDuplex = fullDuplex
	return lst, nil
}
