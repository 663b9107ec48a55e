//go:build tinygo && efm32gg11b820

package main

import (
	"unsafe"

	"github.com/knieriem/tinygo-gem/efm32gg/eth/internal/gem"
	"github.com/knieriem/tinygo-gem/internal/volatile"
)

// Peripheral addresses of the EFM32GG11B820.
const (
	cmuBase  = 0x400E4000
	gpioBase = 0x40088000

	// ETH wrapper registers following the GEM core
	ethCTRL      = gem.Base + 0x1000
	ethROUTEPEN  = gem.Base + 0x1004
	ethROUTELOC1 = gem.Base + 0x100C
)

const (
	CMU_CTRL        = cmuBase + 0x000
	CMU_HFBUSCLKEN0 = cmuBase + 0x0B0
	CMU_ROUTEPEN    = cmuBase + 0x170
	CMU_ROUTELOC0   = cmuBase + 0x174

	CMU_CTRL_CLKOUTSEL2_Pos  = 10
	CMU_CTRL_CLKOUTSEL2_Msk  = 0x1F << CMU_CTRL_CLKOUTSEL2_Pos
	CMU_CTRL_CLKOUTSEL2_HFXO = 0x05
	CMU_CTRL_HFPERCLKEN      = 1 << 20

	CMU_HFBUSCLKEN0_GPIO = 1 << 3
	CMU_HFBUSCLKEN0_ETH  = 1 << 24

	CMU_ROUTEPEN_CLKOUT2PEN      = 1 << 2
	CMU_ROUTELOC0_CLKOUT2LOC_Pos = 16
	CMU_ROUTELOC0_CLKOUT2LOC_Msk = 0x3F << CMU_ROUTELOC0_CLKOUT2LOC_Pos

	ETH_ROUTEPEN_RMIIPEN = 1 << 0
	ETH_ROUTEPEN_MDIOPEN = 1 << 1
	ETH_ROUTELOC1_RMII1  = 1 << 0
	ETH_ROUTELOC1_MDIO1  = 1 << 8
)

// GPIO pin modes
const (
	modeInput    = 0x1
	modePushPull = 0x4
)

type gpioPort struct {
	CTRL  volatile.Register32
	MODEL volatile.Register32
	MODEH volatile.Register32
	DOUT  volatile.Register32
	_     [8]uint32
}

type port uint8

const (
	portD port = 3
	portF port = 5
	portH port = 7
	portI port = 8
)

type pin struct {
	port port
	num  uint8
}

func (p pin) regs() *gpioPort {
	return (*gpioPort)(unsafe.Pointer(uintptr(gpioBase + uint32(p.port)*0x30)))
}

func (p pin) configure(mode uint32) {
	r := p.regs()
	if p.num < 8 {
		r.MODEL.ReplaceBits(mode, 0xF, p.num*4)
	} else {
		r.MODEH.ReplaceBits(mode, 0xF, (p.num-8)*4)
	}
}

func (p pin) High() { p.regs().DOUT.SetBits(1 << p.num) }
func (p pin) Low() { p.regs().DOUT.ClearBits(1 << p.num) }

var (
	ETH_RXD0    = pin{portD, 9}
	ETH_REF_CLK = pin{portD, 10}
	ETH_CRS_DV  = pin{portD, 11}
	ETH_RX_ER   = pin{portD, 12}
	ETH_MDIO    = pin{portD, 13}
	ETH_MDC     = pin{portD, 14}
	ETH_TXD0    = pin{portF, 7}
	ETH_TXD1    = pin{portF, 6}
	ETH_TX_EN   = pin{portF, 8}
	ETH_RXD1    = pin{portF, 9}

	PHY_RESET = pin{portH, 7}
	PHY_POWER = pin{portI, 10}

	// The RGB LEDs are common anode, so Low turns a color on.
	pulseLED = pin{portH, 11} // LED0 green
	linkLED  = pin{portH, 14} // LED1 green
	rxLED    = pin{portH, 13} // LED1 red
	errLED   = pin{portH, 10} // LED0 red
)

func reg(addr uint32) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(addr)))
}

// initBoard enables the clocks, routes the RMII and MDIO pins, feeds the
// PHY's reference clock from the HFXO and powers up the PHY, holding it
// in reset. The ETH CTRL register, which gates the clock of the whole
// peripheral, is returned for gem.Config.
func initBoard() *volatile.Register32 {
	reg(CMU_HFBUSCLKEN0).SetBits(CMU_HFBUSCLKEN0_GPIO)
	for _, led := range []pin{pulseLED, linkLED, rxLED, errLED} {
		led.configure(modePushPull)
		led.High()
	}

	reg(CMU_CTRL).ReplaceBits(CMU_CTRL_HFPERCLKEN|CMU_CTRL_CLKOUTSEL2_HFXO<<CMU_CTRL_CLKOUTSEL2_Pos,
		CMU_CTRL_HFPERCLKEN|CMU_CTRL_CLKOUTSEL2_Msk, 0)
	reg(CMU_HFBUSCLKEN0).SetBits(CMU_HFBUSCLKEN0_ETH)

	PHY_RESET.configure(modePushPull)
	PHY_RESET.Low()
	PHY_POWER.configure(modePushPull)
	PHY_POWER.High()

	for _, p := range []pin{ETH_TXD0, ETH_TXD1, ETH_TX_EN, ETH_REF_CLK, ETH_MDIO, ETH_MDC} {
		p.configure(modePushPull)
	}
	for _, p := range []pin{ETH_RXD0, ETH_RXD1, ETH_CRS_DV, ETH_RX_ER} {
		p.configure(modeInput)
	}

	reg(CMU_ROUTELOC0).ReplaceBits(5, 0x3F, CMU_ROUTELOC0_CLKOUT2LOC_Pos)
	reg(CMU_ROUTEPEN).SetBits(CMU_ROUTEPEN_CLKOUT2PEN)

	reg(ethROUTELOC1).Set(ETH_ROUTELOC1_RMII1 | ETH_ROUTELOC1_MDIO1)
	reg(ethROUTEPEN).Set(ETH_ROUTEPEN_RMIIPEN | ETH_ROUTEPEN_MDIOPEN)

	return reg(ethCTRL)
}

// releasePHY takes the PHY out of reset once the MAC is configured.
func releasePHY() {
	PHY_RESET.High()
}
