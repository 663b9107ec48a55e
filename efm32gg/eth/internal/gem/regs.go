package gem

import (
	"unsafe"

	"github.com/knieriem/tinygo-gem/internal/volatile"
)

// Base is the address of the ETH peripheral of the EFM32GG11.
const Base = 0x40024000

// Regs is the register block of the Cadence GEM core inside the EFM32GG11
// ETH peripheral. Only the registers the driver uses are named.
type Regs struct {
	NETWORKCTRL     volatile.Register32 // 0x000
	NETWORKCFG      volatile.Register32 // 0x004
	NETWORKSTATUS   volatile.Register32 // 0x008
	_               uint32
	DMACFG          volatile.Register32 // 0x010
	TXSTATUS        volatile.Register32 // 0x014
	RXQPTR          volatile.Register32 // 0x018
	TXQPTR          volatile.Register32 // 0x01C
	RXSTATUS        volatile.Register32 // 0x020
	IFCR            volatile.Register32 // 0x024, write one to clear
	IENS            volatile.Register32 // 0x028
	IENC            volatile.Register32 // 0x02C
	IMASK           volatile.Register32 // 0x030
	PHYMNGMNT       volatile.Register32 // 0x034
	_               [18]uint32
	HASHBOTTOM      volatile.Register32 // 0x080
	HASHTOP         volatile.Register32 // 0x084
	SPECADDR1BOTTOM volatile.Register32 // 0x088
	SPECADDR1TOP    volatile.Register32 // 0x08C
}

const (
	NETWORKCTRL_ENBRX     = 1 << 2
	NETWORKCTRL_ENBTX     = 1 << 3
	NETWORKCTRL_MANPORTEN = 1 << 4
	NETWORKCTRL_TXSTRT    = 1 << 9
	NETWORKCTRL_TXHALT    = 1 << 10

	NETWORKCFG_SPEED             = 1 << 0
	NETWORKCFG_FULLDUPLEX        = 1 << 1
	NETWORKCFG_RX1536BYTEFRAMES  = 1 << 8
	NETWORKCFG_MDCCLKDIV_Pos     = 18
	NETWORKCFG_MDCCLKDIV_Msk     = 0b111 << NETWORKCFG_MDCCLKDIV_Pos
	NETWORKCFG_RXCHKSUMOFFLOADEN = 1 << 24

	NETWORKSTATUS_MANDONE = 1 << 2

	DMACFG_AMBABRSTLEN_Pos = 0
	DMACFG_AMBABRSTLEN_Msk = 0x1F << DMACFG_AMBABRSTLEN_Pos
	DMACFG_RXPBUFSIZE_Pos  = 8
	DMACFG_RXPBUFSIZE_Msk  = 0b11 << DMACFG_RXPBUFSIZE_Pos
	DMACFG_TXPBUFSIZE      = 1 << 10
	DMACFG_TXPBUFTCPEN     = 1 << 11
	DMACFG_RXBUFSIZE_Pos   = 16
	DMACFG_RXBUFSIZE_Msk   = 0xFF << DMACFG_RXBUFSIZE_Pos

	TXSTATUS_TXGO = 1 << 3

	// The DMA queue pointers hold word aligned addresses.
	QPTR_Msk = 0xFFFFFFFC
)

// Interrupt flags, shared by IFCR, IENS, IENC and IMASK.
const (
	INT_MNGMNTDONE       = 1 << 0
	INT_RXCMPLT          = 1 << 1
	INT_RXUSEDBITREAD    = 1 << 2
	INT_TXUSEDBITREAD    = 1 << 3
	INT_TXUNDERRUN       = 1 << 4
	INT_RTRYLMTORLATECOL = 1 << 5
	INT_AMBAERR          = 1 << 6
	INT_TXCMPLT          = 1 << 7
	INT_RXOVERRUN        = 1 << 10
	INT_RESPNOTOK        = 1 << 11
)

// CTRL_GBLCLKEN enables the clock of the whole peripheral in the EFM32
// wrapper CTRL register.
const CTRL_GBLCLKEN = 1 << 0

// Steal returns the register block found at base without going through
// New. It is meant for fault handlers, which run after normal execution
// has been abandoned and have no other way to reach the peripheral.
// Nothing but Quiesce should be called on the result.
func Steal(base uintptr) *Regs {
	return (*Regs)(unsafe.Pointer(base))
}

// Quiesce stops reception and transmission and masks all interrupts.
func (r *Regs) Quiesce() {
	r.IENC.Set(0xFFFFFFFF)
	r.NETWORKCTRL.ClearBits(NETWORKCTRL_ENBRX | NETWORKCTRL_ENBTX)
}
