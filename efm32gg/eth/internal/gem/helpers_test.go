package gem

import (
	"bytes"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knieriem/tinygo-gem/internal/volatile"
)

var testAddr = net.HardwareAddr{0x02, 0x00, 0x5e, 0x10, 0x20, 0x30}

type testEnv struct {
	regs *Regs
	c    *Controller
	log  *bytes.Buffer
}

func newRings(t *testing.T, nRx, nTx int) (*RxRing, *TxRing) {
	t.Helper()
	rx, err := NewRxRing(make([]RxDesc, nRx), make([]uint32, nRx*BufferSize/4))
	require.NoError(t, err)
	tx, err := NewTxRing(make([]TxDesc, nTx), make([]uint32, nTx*BufferSize/4))
	require.NoError(t, err)
	return rx, tx
}

// newTestEnv sets up a controller on a register block in memory whose
// interrupt flag register behaves as write one to clear.
func newTestEnv(t *testing.T, nRx, nTx int) *testEnv {
	t.Helper()
	regs := new(Regs)
	volatile.Hook(&regs.IFCR, func(old, v uint32) uint32 {
		return old &^ v
	})
	t.Cleanup(func() { volatile.Unhook(&regs.IFCR) })

	var buf bytes.Buffer
	rx, tx := newRings(t, nRx, nTx)
	c, err := New(regs, rx, tx, Config{
		HardwareAddr: testAddr,
		Logger:       slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)
	buf.Reset()
	return &testEnv{regs: regs, c: c, log: &buf}
}

// receive marks rx descriptor i as filled by the DMA engine.
func (e *testEnv) receive(i int, sof, eof bool) {
	d := &e.c.rx.descs[i]
	d.status.Set(EncodeRxStatus(RxStatus{StartOfFrame: sof, EndOfFrame: eof}))
	d.addr.SetBits(rxAddrOwn)
}

// setQueuePtr moves the transmit queue pointer to descriptor i.
func (e *testEnv) setQueuePtr(i int) {
	e.regs.TXQPTR.Set(e.c.tx.Base() + uint32(i*descriptorLen))
}

// txState sets ownership and last buffer flag of tx descriptor i.
func (e *testEnv) txState(i int, own Ownership, last bool) {
	d := &e.c.tx.descs[i]
	st := d.Status()
	st.Owner = own
	st.Last = last
	d.status.Set(EncodeTxStatus(st))
}

func (e *testEnv) txOwners() []Ownership {
	owners := make([]Ownership, e.c.tx.Len())
	for i := range owners {
		owners[i] = e.c.tx.descs[i].Ownership()
	}
	return owners
}
var discard = slog.New(slog.DiscardHandler)
