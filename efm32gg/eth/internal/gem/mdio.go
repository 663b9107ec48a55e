package gem

import (
	"log/slog"

	"github.com/knieriem/tinygo-gem/internal/phy"
)

// Fields of the PHY maintenance register.
const (
	phymngmntDataMsk   = 0xFFFF
	phymngmntWrite10   = 0b10 << 16 // must be written as 10
	phymngmntRegPos    = 18
	phymngmntRegMsk    = 0x1F << phymngmntRegPos
	phymngmntPhyPos    = 23
	phymngmntPhyMsk    = 0x1F << phymngmntPhyPos
	phymngmntOpPos     = 28
	phymngmntOpMsk     = 0b11 << phymngmntOpPos
	phymngmntStartCode = 0b01 << 30 // clause 22 start of frame
)

// MDIOOp is the operation code of a management frame.
type MDIOOp uint8

const (
	MDIOWrite MDIOOp = 0b01
	MDIORead  MDIOOp = 0b10
)

// EncodeFrame builds the value written to the PHY maintenance register.
func EncodeFrame(op MDIOOp, phyAddr uint8, reg phy.Register, data uint16) uint32 {
	return phymngmntStartCode |
		uint32(op&0b11)<<phymngmntOpPos |
		uint32(phyAddr&0x1F)<<phymngmntPhyPos |
		uint32(reg&0x1F)<<phymngmntRegPos |
		phymngmntWrite10 |
		uint32(data)
}

// DecodeFrame splits a PHY maintenance register value.
func DecodeFrame(w uint32) (op MDIOOp, phyAddr uint8, reg phy.Register, data uint16) {
	op = MDIOOp((w & phymngmntOpMsk) >> phymngmntOpPos)
	phyAddr = uint8((w & phymngmntPhyMsk) >> phymngmntPhyPos)
	reg = phy.Register((w & phymngmntRegMsk) >> phymngmntRegPos)
	data = uint16(w & phymngmntDataMsk)
	return
}

type BusyWaitFunc func() error

// MDIO drives the management interface of the MAC. It implements
// phy.MDIO.
type MDIO struct {
	regs      *Regs
	busyWait  BusyWaitFunc
	pollLimit int
	log       *slog.Logger
}

// SetBusyWait installs a function that is called while waiting for a
// management operation to complete. An error returned by it aborts the
// operation.
func (md *MDIO) SetBusyWait(wait BusyWaitFunc) {
	md.busyWait = wait
}

// SetPollLimit bounds the number of status polls per operation; after n
// unsuccessful polls the operation fails with ErrMDIOTimeout. Zero, the
// default, waits forever.
func (md *MDIO) SetPollLimit(n int) {
	md.pollLimit = n
}

func (md *MDIO) ReadReg(phyAddr uint8, reg phy.Register) (uint16, error) {
	md.regs.PHYMNGMNT.Set(EncodeFrame(MDIORead, phyAddr, reg, 0))

	if err := md.wait(); err != nil {
		return 0, err
	}

	data := uint16(md.regs.PHYMNGMNT.Get() & phymngmntDataMsk)
	md.log.Debug("mdio read",
		slog.Int("phy", int(phyAddr)),
		slog.String("reg", reg.String()),
		slog.Int("data", int(data)))
	return data, nil
}

func (md *MDIO) WriteReg(phyAddr uint8, reg phy.Register, data uint16) error {
	md.log.Debug("mdio write",
		slog.Int("phy", int(phyAddr)),
		slog.String("reg", reg.String()),
		slog.Int("data", int(data)))

	md.regs.PHYMNGMNT.Set(EncodeFrame(MDIOWrite, phyAddr, reg, data))

	return md.wait()
}

// wait spins until the management logic reports the operation done.
func (md *MDIO) wait() error {
	for polls := 0; !md.regs.NETWORKSTATUS.HasBits(NETWORKSTATUS_MANDONE); polls++ {
		if md.pollLimit > 0 && polls >= md.pollLimit {
			return ErrMDIOTimeout
		}
		if md.busyWait != nil {
			if err := md.busyWait(); err != nil {
				return err
			}
		}
	}
	return nil
}
