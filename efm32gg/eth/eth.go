//go:build tinygo && efm32gg11b820

// Command eth brings up the Ethernet MAC of an EFM32GG11, waits for the
// link, dumps received frames and sends a broadcast frame every second.
package main

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"time"
	"unsafe"

	"github.com/knieriem/tinygo-gem/efm32gg/eth/internal/gem"
	"github.com/knieriem/tinygo-gem/internal/ethdump"
	"github.com/knieriem/tinygo-gem/internal/phy"
	"github.com/knieriem/tinygo-gem/internal/phy/detect"
	"github.com/knieriem/tinygo-gem/internal/phy/ksz8091"
)

const (
	numRxDescs = 16
	numTxDescs = 16
)

var (
	rxDescs  [numRxDescs]gem.RxDesc
	txDescs  [numTxDescs]gem.TxDesc
	rxRegion [numRxDescs * gem.BufferSize / 4]uint32
	txRegion [numTxDescs * gem.BufferSize / 4]uint32
)

var hwAddr = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}

// example Ethernet frame (broadcast)
var payload = []byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, // dest MAC
	0x02, 0x00, 0x00, 0x00, 0x00, 0x02, // src MAC
	0x88, 0xb5, // Ethertype: local experimental
	'H', 'e', 'l', 'l', 'o', ' ', 'w', 'o', 'r', 'l', 'd', '!',
}

var log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

func initMAC() (*gem.Controller, phy.Device, error) {
	ctrlReg := initBoard()

	rx, err := gem.NewRxRing(rxDescs[:], rxRegion[:])
	if err != nil {
		return nil, nil, err
	}
	tx, err := gem.NewTxRing(txDescs[:], txRegion[:])
	if err != nil {
		return nil, nil, err
	}
	c, err := gem.New((*gem.Regs)(unsafe.Pointer(uintptr(gem.Base))), rx, tx, gem.Config{
		HardwareAddr:    hwAddr,
		Speed100:        true,
		ChecksumOffload: true,
		BurstLength:     1,
		GlobalClock:     ctrlReg,
		Logger:          log,
	})
	if err != nil {
		return nil, nil, err
	}
	releasePHY()

	mdio := c.MDIO()
	mdio.SetBusyWait(func() error {
		time.Sleep(10 * time.Microsecond)
		return nil
	})
	mdio.SetPollLimit(1000)

	dev, err := detect.Open(mdio, log)
	if err != nil {
		return nil, nil, err
	}
	if err := dev.Reset(); err != nil {
		return nil, nil, err
	}
	if k, ok := dev.(*ksz8091.PHY); ok {
		if err := k.EnableInterrupts(); err != nil {
			return nil, nil, err
		}
	}
	return c, dev, nil
}

func main() {
	c, dev, err := initMAC()
	if err != nil {
		fatal(err)
	}
	if err := waitForLinkUp(dev); err != nil {
		fatal(err)
	}
	println("init done")

	for i := 0; ; i++ {
		c.HandleInterrupt()
		for {
			rx, _, ok := c.Receive()
			if !ok {
				break
			}
			rxLED.Low()
			err := rx.Consume(func(frame []byte) error {
				println("RX len", len(frame))
				ethdump.Frame(os.Stdout, frame[:min(len(frame), 256)])
				return nil
			})
			if err != nil {
				log.Warn("rx", slog.String("err", err.Error()))
			}
			rxLED.High()
		}

		if i%20 == 0 {
			send(c)
			if k, ok := dev.(*ksz8091.PHY); ok {
				checkLink(k)
			}
		}
		if i%10 == 0 {
			pulseLED.Low()
		} else {
			pulseLED.High()
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func send(c *gem.Controller) {
	tx, ok := c.Transmit()
	if !ok {
		println("tx ring full")
		c.DumpRings(os.Stdout)
		return
	}
	payload[len(payload)-1]++
	err := tx.Consume(len(payload), func(buf []byte) error {
		copy(buf, payload)
		return nil
	})
	if err != nil {
		log.Warn("tx", slog.String("err", err.Error()))
	}
}

func checkLink(k *ksz8091.PHY) {
	ev, err := k.HandleInterrupt()
	if err != nil || ev == 0 {
		return
	}
	println("phy interrupt:", ev.String())
	if st, err := k.LinkStatus(); err == nil && st.Up {
		linkLED.Low()
	} else {
		linkLED.High()
	}
}

func waitForLinkUp(dev phy.Device) error {
	// Wait for link up bit in BSR
	timeout := time.Now().Add(5 * time.Second)
	for time.Now().Before(timeout) {
		st, err := dev.LinkStatus()
		if err != nil {
			return err
		}
		if st.Up {
			println("link up", st.String())
			linkLED.Low()
			return nil
		}
		linkLED.Low()
		time.Sleep(time.Millisecond * 100)

		linkLED.High()
		time.Sleep(time.Millisecond * 100)
	}
	return errors.New("PHY link not up")
}

// fatal stops the MAC from writing into memory and halts with the error
// LED on. It reaches the registers through gem.Steal, as the controller
// may not exist yet.
func fatal(err error) {
	gem.Steal(gem.Base).Quiesce()
	errLED.Low()
	println("fatal:", err.Error())
	for {
		time.Sleep(time.Second)
	}
}
