//go:build !tinygo

package gemsim

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knieriem/tinygo-gem/efm32gg/eth/internal/gem"
	"github.com/knieriem/tinygo-gem/internal/phy"
	"github.com/knieriem/tinygo-gem/internal/phy/detect"
	"github.com/knieriem/tinygo-gem/internal/phy/ksz8091"
)

var station = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

func newSystem(t *testing.T, nRx, nTx int) (*Device, *gem.Controller) {
	t.Helper()
	dev := New(Config{})
	t.Cleanup(dev.Close)

	rx, err := gem.NewRxRing(make([]gem.RxDesc, nRx), make([]uint32, nRx*gem.BufferSize/4))
	require.NoError(t, err)
	tx, err := gem.NewTxRing(make([]gem.TxDesc, nTx), make([]uint32, nTx*gem.BufferSize/4))
	require.NoError(t, err)
	c, err := gem.New(dev.Regs(), rx, tx, gem.Config{HardwareAddr: station})
	require.NoError(t, err)
	require.NoError(t, dev.Attach(rx, tx))
	return dev, c
}

func testFrame(dst net.HardwareAddr, n int, seed byte) []byte {
	f := make([]byte, n)
	copy(f, dst)
	copy(f[6:], []byte{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee})
	f[12], f[13] = 0x88, 0xb5
	for i := 14; i < n; i++ {
		f[i] = seed + byte(i)
	}
	return f
}

func TestStationAddr(t *testing.T) {
	dev, _ := newSystem(t, 2, 2)
	assert.Equal(t, station, dev.StationAddr())
	// Only the understood sources are unmasked.
	assert.Zero(t, dev.Regs().IMASK.Get()&gem.INT_RXCMPLT)
	assert.NotZero(t, dev.Regs().IMASK.Get()&gem.INT_TXUSEDBITREAD)
}

func TestDetectPHY(t *testing.T) {
	_, c := newSystem(t, 2, 2)
	dev, err := detect.Open(c.MDIO(), nil)
	require.NoError(t, err)
	require.IsType(t, &ksz8091.PHY{}, dev)
	require.NoError(t, dev.Reset())

	st, err := dev.LinkStatus()
	require.NoError(t, err)
	assert.Equal(t, phy.LinkStatus{Up: true, AutoNegotiated: true, Speed: 100, FullDuplex: true}, st)
}

func TestPHYInterrupt(t *testing.T) {
	dev, c := newSystem(t, 2, 2)
	p := ksz8091.New(c.MDIO(), 0, nil)
	require.NoError(t, p.EnableInterrupts())
	assert.False(t, dev.PHY().Pending())

	dev.PHY().SetLink(false)
	assert.True(t, dev.PHY().Pending())
	irq, err := p.HandleInterrupt()
	require.NoError(t, err)
	assert.Equal(t, ksz8091.IntLinkDown, irq)
	assert.False(t, dev.PHY().Pending())

	st, err := p.LinkStatus()
	require.NoError(t, err)
	assert.False(t, st.Up)
}

func TestReceive(t *testing.T) {
	dev, c := newSystem(t, 8, 2)
	want := testFrame(station, 300, 1)
	require.NoError(t, dev.Deliver(want))

	select {
	case <-dev.Interrupts():
	default:
		t.Fatal("no interrupt")
	}
	assert.True(t, c.HandleInterrupt().Has(gem.EventRxComplete))

	rx, _, ok := c.Receive()
	require.True(t, ok)
	require.NoError(t, rx.Consume(func(frame []byte) error {
		assert.Len(t, frame, 384)
		assert.Equal(t, want, frame[:300])
		return nil
	}))
	assert.Equal(t, uint64(1), dev.Stats().RxFrames)
}

func TestReceiveWrapsRing(t *testing.T) {
	dev, c := newSystem(t, 4, 2)
	for i := 0; i < 10; i++ {
		want := testFrame(broadcast, 200, byte(i))
		require.NoError(t, dev.Deliver(want))
		rx, _, ok := c.Receive()
		require.True(t, ok, "frame %d", i)
		require.NoError(t, rx.Consume(func(frame []byte) error {
			assert.Equal(t, want, frame[:200])
			return nil
		}))
	}
	assert.Equal(t, uint32(10), c.Stats().RxFrames)
}

func TestReceiveFiltered(t *testing.T) {
	dev, c := newSystem(t, 4, 2)
	other := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x99}
	assert.ErrorIs(t, dev.Deliver(testFrame(other, 64, 0)), ErrFiltered)
	_, _, ok := c.Receive()
	assert.False(t, ok)
	assert.Equal(t, uint64(1), dev.Stats().RxFiltered)
}

func TestReceiveOverrun(t *testing.T) {
	dev, c := newSystem(t, 4, 2)
	require.NoError(t, dev.Deliver(testFrame(station, 300, 0)))
	assert.ErrorIs(t, dev.Deliver(testFrame(station, 300, 1)), ErrOverrun)

	assert.True(t, c.HandleInterrupt().Has(gem.EventRxOverrun))
	assert.Equal(t, uint32(1), c.Stats().RxOverruns)
}

func TestReceiveFrameSize(t *testing.T) {
	dev, _ := newSystem(t, 4, 2)
	assert.ErrorIs(t, dev.Deliver(make([]byte, 10)), ErrFrameSize)
	assert.ErrorIs(t, dev.Deliver(make([]byte, gem.MaxFrameSize+1)), ErrFrameSize)
}

func TestTransmit(t *testing.T) {
	dev, c := newSystem(t, 2, 8)
	var sent [][]byte
	dev.OnTransmit(func(frame []byte) {
		sent = append(sent, frame)
	})

	var want [][]byte
	for i := 0; i < 20; i++ {
		f := testFrame(broadcast, 60+i*37, byte(i))
		want = append(want, f)

		tx, ok := c.Transmit()
		require.True(t, ok, "frame %d", i)
		require.NoError(t, tx.Consume(len(f), func(buf []byte) error {
			copy(buf, f)
			return nil
		}))
	}
	assert.Equal(t, want, sent)

	st := c.Stats()
	assert.Equal(t, uint32(20), st.TxFrames)
	assert.NotZero(t, st.TxReclaimed)
	assert.Zero(t, st.Dangling)
	assert.Zero(t, st.Duplicates)
	assert.Equal(t, uint64(20), dev.Stats().TxFrames)

	_, n, ok := c.FindTxWindow()
	require.True(t, ok)
	assert.Equal(t, 8, n)
}

func TestTransmitFailure(t *testing.T) {
	dev, c := newSystem(t, 2, 4)
	called := false
	dev.OnTransmit(func([]byte) { called = true })
	dev.FailNext(gem.TxStatus{RetryLimit: true})

	tx, ok := c.Transmit()
	require.True(t, ok)
	require.NoError(t, tx.Consume(200, func([]byte) error { return nil }))
	assert.False(t, called)
	assert.True(t, c.HandleInterrupt().Has(gem.EventTxError))

	_, n, ok := c.FindTxWindow()
	require.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Equal(t, uint32(1), c.Stats().TxErrors)
	assert.Equal(t, uint64(1), dev.Stats().TxFailed)
}

func TestLoopback(t *testing.T) {
	dev, c := newSystem(t, 8, 8)
	dev.OnTransmit(func(frame []byte) {
		assert.NoError(t, dev.Deliver(frame))
	})

	want := testFrame(station, 500, 7)
	tx, ok := c.Transmit()
	require.True(t, ok)
	require.NoError(t, tx.Consume(len(want), func(buf []byte) error {
		copy(buf, want)
		return nil
	}))

	rx, _, ok := c.Receive()
	require.True(t, ok)
	require.NoError(t, rx.Consume(func(frame []byte) error {
		assert.True(t, bytes.Equal(want, frame[:len(want)]))
		return nil
	}))
}
