// Package phy holds what all PHY drivers share: the MDIO access interface,
// the IEEE 802.3 clause 22 register selectors and identification helpers.
package phy

import (
	"errors"
	"fmt"
)

// Register selects a PHY register on the management bus.
type Register uint8

// Standard registers as defined by 802.3 clause 22.
const (
	BasicControl               Register = 0x00
	BasicStatus                Register = 0x01
	PhyID1                     Register = 0x02
	PhyID2                     Register = 0x03
	AutoAdvertisement          Register = 0x04
	AutoPartnerAbility         Register = 0x05
	AutoExpansion              Register = 0x06
	AutoNextPage               Register = 0x07
	AutoPartnerNextPageAbility Register = 0x08
	MmdControl                 Register = 0x0D
	MmdRegisterData            Register = 0x0E
)

// Vendor returns the selector of a vendor specific register.
func Vendor(addr uint8) Register {
	return Register(addr & 0x1F)
}

func (r Register) String() string {
	switch r {
	case BasicControl:
		return "BasicControl"
	case BasicStatus:
		return "BasicStatus"
	case PhyID1:
		return "PhyId1"
	case PhyID2:
		return "PhyId2"
	case AutoAdvertisement:
		return "AutoAdvertisement"
	case AutoPartnerAbility:
		return "AutoPartnerAbility"
	case AutoExpansion:
		return "AutoExpansion"
	case AutoNextPage:
		return "AutoNextPage"
	case AutoPartnerNextPageAbility:
		return "AutoPartnerNextPageAbility"
	case MmdControl:
		return "MmdControl"
	case MmdRegisterData:
		return "MmdRegisterData"
	}
	return fmt.Sprintf("Vendor(%#02x)", uint8(r))
}

// Bits of the basic control and status registers.
const (
	BCRReset          = 1 << 15
	BCRSpeed100       = 1 << 13
	BCRAutoNegEnable  = 1 << 12
	BCRRestartAutoNeg = 1 << 9
	BCRFullDuplex     = 1 << 8

	BSRAutoNegComplete = 1 << 5
	BSRLinkStatus      = 1 << 2
)

// MDIO gives access to the registers of the PHYs on a management bus.
type MDIO interface {
	ReadReg(phyAddr uint8, reg Register) (uint16, error)
	WriteReg(phyAddr uint8, reg Register, value uint16) error
}

// Device is implemented by the PHY drivers.
type Device interface {
	Addr() uint8
	OUI() (OUI, error)
	Reset() error
	LinkStatus() (LinkStatus, error)
}

var ErrNotFound = errors.New("phy not found")

type LinkStatus struct {
	Up             bool
	AutoNegotiated bool
	Speed          uint16
	FullDuplex     bool
}

func (s LinkStatus) String() string {
	if !s.Up {
		return "down"
	}
	duplex := "half"
	if s.FullDuplex {
		duplex = "full"
	}
	return fmt.Sprintf("up %dMbps %s-duplex", s.Speed, duplex)
}
