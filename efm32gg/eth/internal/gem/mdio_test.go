package gem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knieriem/tinygo-gem/internal/phy"
	"github.com/knieriem/tinygo-gem/internal/volatile"
)

func TestEncodeFrame(t *testing.T) {
	assert.Equal(t, uint32(0x638A0000), EncodeFrame(MDIORead, 7, phy.PhyID1, 0))
	assert.Equal(t, uint32(0x506E0500), EncodeFrame(MDIOWrite, 0, phy.Vendor(0x1B), 0x0500))

	op, addr, reg, data := DecodeFrame(EncodeFrame(MDIOWrite, 31, phy.Vendor(0x1F), 0xBEEF))
	assert.Equal(t, MDIOWrite, op)
	assert.Equal(t, uint8(31), addr)
	assert.Equal(t, phy.Vendor(0x1F), reg)
	assert.Equal(t, uint16(0xBEEF), data)
}

// mdioEnv answers management frames from a register map after a number
// of polls.
func mdioEnv(t *testing.T, delay int) (*MDIO, map[phy.Register]uint16) {
	t.Helper()
	regs := new(Regs)
	phyRegs := map[phy.Register]uint16{}
	pending := 0
	volatile.Hook(&regs.PHYMNGMNT, func(_, v uint32) uint32 {
		op, _, reg, data := DecodeFrame(v)
		if op == MDIOWrite {
			phyRegs[reg] = data
		} else {
			v = v&^phymngmntDataMsk | uint32(phyRegs[reg])
		}
		pending = delay
		if delay > 0 {
			regs.NETWORKSTATUS.ClearBits(NETWORKSTATUS_MANDONE)
		} else {
			regs.NETWORKSTATUS.SetBits(NETWORKSTATUS_MANDONE)
		}
		return v
	})
	t.Cleanup(func() { volatile.Unhook(&regs.PHYMNGMNT) })

	md := &MDIO{regs: regs, log: discard}
	md.SetBusyWait(func() error {
		if pending--; pending <= 0 {
			regs.NETWORKSTATUS.SetBits(NETWORKSTATUS_MANDONE)
		}
		return nil
	})
	return md, phyRegs
}

func TestMDIOReadWrite(t *testing.T) {
	md, phyRegs := mdioEnv(t, 3)
	phyRegs[phy.PhyID2] = 0x1562

	v, err := md.ReadReg(0, phy.PhyID2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1562), v)

	require.NoError(t, md.WriteReg(0, phy.BasicControl, phy.BCRReset))
	assert.Equal(t, uint16(phy.BCRReset), phyRegs[phy.BasicControl])
}

func TestMDIOPollLimit(t *testing.T) {
	md, _ := mdioEnv(t, 10)
	md.SetPollLimit(5)
	_, err := md.ReadReg(0, phy.BasicStatus)
	assert.ErrorIs(t, err, ErrMDIOTimeout)
}

func TestMDIOBusyWaitError(t *testing.T) {
	md, _ := mdioEnv(t, 10)
	errAbort := errors.New("abort")
	md.SetBusyWait(func() error { return errAbort })
	assert.ErrorIs(t, md.WriteReg(0, phy.BasicControl, 0), errAbort)
}

func TestMDIOProbe(t *testing.T) {
	md, _ := mdioEnv(t, 0)
	// Only the PHY at address 7 answers.
	volatile.Hook(&md.regs.PHYMNGMNT, func(_, v uint32) uint32 {
		md.regs.NETWORKSTATUS.SetBits(NETWORKSTATUS_MANDONE)
		_, addr, reg, _ := DecodeFrame(v)
		data := uint32(0xFFFF)
		if addr == 7 {
			switch reg {
			case phy.PhyID1:
				data = 0x0022
			case phy.PhyID2:
				data = 0x1562
			}
		}
		return v&^phymngmntDataMsk | data
	})
	addr, ok := phy.ProbeAddr(md)
	require.True(t, ok)
	assert.Equal(t, uint8(7), addr)
}
