package phy

import (
	"fmt"
	"math/bits"
)

// OUI is the IEEE organizationally unique identifier of a PHY vendor.
type OUI [3]byte

func (o OUI) String() string {
	return fmt.Sprintf("%02X-%02X-%02X", o[0], o[1], o[2])
}

// ID is the content of the two PHY identifier registers.
type ID struct {
	ID1, ID2 uint16
}

// ReadID reads both identifier registers of the PHY at addr.
func ReadID(mdio MDIO, addr uint8) (ID, error) {
	id1, err := mdio.ReadReg(addr, PhyID1)
	if err != nil {
		return ID{}, err
	}
	id2, err := mdio.ReadReg(addr, PhyID2)
	if err != nil {
		return ID{}, err
	}
	return ID{id1, id2}, nil
}

// OUI extracts the vendor identifier.
//
// Bits 3..18 of the OUI are in bits 15..0 of PhyId1, bits 19..24 in bits
// 15..10 of PhyId2. Concatenated they hold the OUI in bit-reversed order.
func (id ID) OUI() OUI {
	v := bits.Reverse32(uint32(id.ID1)<<14 | uint32(id.ID2)>>2)
	return OUI{byte(v), byte(v >> 8), byte(v >> 16)}
}

// Model returns the vendor's model number.
func (id ID) Model() uint8 {
	return uint8(id.ID2>>4) & 0x3F
}

// Revision returns the model revision.
func (id ID) Revision() uint8 {
	return uint8(id.ID2) & 0x0F
}

// Present reports whether an identifier pair was returned by a real PHY
// rather than by a floating or absent bus. The patterns are the ones seen
// on hardware for empty addresses and must not be simplified.
func (id ID) Present() bool {
	id1, id2 := id.ID1, id.ID2
	return id1 != 0x0000 && id1 != 0x3FFF && id2 != 0x0000 && id2 != 0xFFFF ||
		id1 != 0x0000 && id1 != 0x3FFF && id1 != 0xFFFF ||
		id2 != 0x0000 && id2 != 0x3FFF && id2 != 0xFFFF
}

// ProbeAddr scans the bus from address 0 upwards and returns the first
// address that answers with a plausible identifier. Addresses whose reads
// fail are skipped.
func ProbeAddr(mdio MDIO) (uint8, bool) {
	for addr := uint8(0); addr < 32; addr++ {
		id, err := ReadID(mdio, addr)
		if err != nil {
			continue
		}
		if id.Present() {
			return addr, true
		}
	}
	return 0, false
}
