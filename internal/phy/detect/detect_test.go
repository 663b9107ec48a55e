package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knieriem/tinygo-gem/internal/phy"
	"github.com/knieriem/tinygo-gem/internal/phy/ksz8091"
	"github.com/knieriem/tinygo-gem/internal/phy/lan8742a"
)

type bus map[uint8]phy.ID

func (b bus) ReadReg(addr uint8, reg phy.Register) (uint16, error) {
	switch reg {
	case phy.PhyID1:
		return b[addr].ID1, nil
	case phy.PhyID2:
		return b[addr].ID2, nil
	}
	return 0, nil
}

func (b bus) WriteReg(uint8, phy.Register, uint16) error {
	return nil
}

func TestOpen(t *testing.T) {
	dev, err := Open(bus{7: {ID1: 0x0022, ID2: 0x1560}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ksz8091.PHY{}, dev)
	assert.Equal(t, uint8(7), dev.Addr())

	dev, err = Open(bus{1: {ID1: 0x0007, ID2: 0xC131}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &lan8742a.PHY{}, dev)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(bus{}, nil)
	assert.ErrorIs(t, err, phy.ErrNotFound)

	_, err = Open(bus{4: {ID1: 0x0141, ID2: 0x0CC0}}, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}
