package gem

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func TestReceiveEndToEnd(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	for i := 1; i <= 3; i++ {
		fill(e.c.rx.Buffer(i), byte(i))
	}
	e.receive(1, true, false)
	e.receive(2, false, false)
	e.receive(3, false, true)

	start, end, ok := e.c.FindRxWindow()
	require.True(t, ok)
	assert.Equal(t, 1, start)
	assert.Equal(t, 3, end)

	rx, _, ok := e.c.Receive()
	require.True(t, ok)
	assert.Equal(t, 3, rx.Len())

	var got []byte
	err := rx.Consume(func(frame []byte) error {
		got = append(got, frame...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 384)
	assert.Equal(t, bytes.Repeat([]byte{1}, 128), got[:128])
	assert.Equal(t, bytes.Repeat([]byte{3}, 128), got[256:])

	for i := 0; i < 4; i++ {
		assert.Equal(t, Hardware, e.c.rx.Desc(i).Ownership(), "desc %d", i)
	}
	st := e.c.Stats()
	assert.Equal(t, uint32(1), st.RxFrames)
	assert.Equal(t, uint32(384), st.RxBytes)

	_, _, ok = e.c.Receive()
	assert.False(t, ok)
}

func TestReceiveWrapped(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	fill(e.c.rx.Buffer(3), 'a')
	fill(e.c.rx.Buffer(0), 'b')
	e.receive(3, true, false)
	e.receive(0, false, true)

	rx, _, ok := e.c.Receive()
	require.True(t, ok)
	err := rx.Consume(func(frame []byte) error {
		require.Len(t, frame, 256)
		assert.Equal(t, byte('a'), frame[127])
		assert.Equal(t, byte('b'), frame[128])
		return nil
	})
	require.NoError(t, err)
}

func TestReceiveNeedsTxWindow(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	e.receive(0, true, true)
	e.txState(0, Hardware, false)
	e.txState(1, Hardware, true)

	_, _, ok := e.c.Receive()
	assert.False(t, ok)
	assert.Equal(t, Software, e.c.rx.Desc(0).Ownership())
}

func TestReceiveFrameTooLong(t *testing.T) {
	e := newTestEnv(t, 16, 2)
	e.receive(0, true, false)
	for i := 1; i < 12; i++ {
		e.receive(i, false, false)
	}
	e.receive(12, false, true)

	rx, _, ok := e.c.Receive()
	require.True(t, ok)
	err := rx.Consume(func([]byte) error {
		t.Fatal("frame passed on")
		return nil
	})
	assert.ErrorIs(t, err, ErrFrameTooLong)
	for i := 0; i < 16; i++ {
		assert.Equal(t, Hardware, e.c.rx.Desc(i).Ownership(), "desc %d", i)
	}
	assert.Equal(t, uint32(1), e.c.Stats().RxDropped)
}

func TestReceiveConsumerError(t *testing.T) {
	e := newTestEnv(t, 4, 2)
	e.receive(0, true, true)

	errParse := errors.New("parse")
	rx, _, ok := e.c.Receive()
	require.True(t, ok)
	assert.ErrorIs(t, rx.Consume(func([]byte) error { return errParse }), errParse)
	assert.Equal(t, Hardware, e.c.rx.Desc(0).Ownership())
}

func TestTransmitConsume(t *testing.T) {
	e := newTestEnv(t, 2, 4)
	tx, ok := e.c.Transmit()
	require.True(t, ok)
	assert.Equal(t, 512, tx.Cap())

	err := tx.Consume(300, func(buf []byte) error {
		require.Len(t, buf, 300)
		fill(buf[:128], 'x')
		fill(buf[128:256], 'y')
		fill(buf[256:], 'z')
		return nil
	})
	require.NoError(t, err)

	ring := e.c.tx
	want := []TxStatus{
		{Length: 300},
		{},
		{Last: true},
		{Owner: Software, Wrap: Wrap},
	}
	for i, w := range want {
		assert.Equal(t, w, ring.Desc(i).Status(), "desc %d", i)
	}
	assert.Equal(t, bytes.Repeat([]byte{'y'}, 128), ring.Buffer(1))
	assert.Equal(t, bytes.Repeat([]byte{'z'}, 44), ring.Buffer(2)[:44])
	assert.True(t, e.regs.NETWORKCTRL.HasBits(NETWORKCTRL_TXSTRT))

	st := e.c.Stats()
	assert.Equal(t, uint32(1), st.TxFrames)
	assert.Equal(t, uint32(300), st.TxBytes)
}

func TestTransmitSingleBuffer(t *testing.T) {
	e := newTestEnv(t, 2, 4)
	tx, ok := e.c.Transmit()
	require.True(t, ok)
	require.NoError(t, tx.Consume(128, func([]byte) error { return nil }))
	assert.Equal(t, TxStatus{Length: 128, Last: true}, e.c.tx.Desc(0).Status())
	assert.Equal(t, Software, e.c.tx.Desc(1).Ownership())
}

func txWords(r *TxRing) []uint32 {
	w := make([]uint32, 0, 2*r.Len())
	for i := range r.descs {
		w = append(w, r.descs[i].addr.Get(), r.descs[i].status.Get())
	}
	return w
}

func TestTransmitExhausted(t *testing.T) {
	for _, size := range []struct{ descs, n int }{{4, 513}, {16, 1537}} {
		e := newTestEnv(t, 2, size.descs)
		tx, ok := e.c.Transmit()
		require.True(t, ok)

		before := txWords(e.c.tx)
		err := tx.Consume(size.n, func([]byte) error {
			t.Fatal("writer called")
			return nil
		})
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, before, txWords(e.c.tx))
		assert.False(t, e.regs.NETWORKCTRL.HasBits(NETWORKCTRL_TXSTRT))
		assert.Equal(t, uint32(1), e.c.Stats().TxExhausted)
	}
}

func TestTransmitWriterError(t *testing.T) {
	e := newTestEnv(t, 2, 4)
	tx, ok := e.c.Transmit()
	require.True(t, ok)

	before := txWords(e.c.tx)
	errWrite := errors.New("write")
	assert.ErrorIs(t, tx.Consume(200, func([]byte) error { return errWrite }), errWrite)
	assert.Equal(t, before, txWords(e.c.tx))
	assert.False(t, e.regs.NETWORKCTRL.HasBits(NETWORKCTRL_TXSTRT))
}

func TestTransmitInvalidLength(t *testing.T) {
	e := newTestEnv(t, 2, 4)
	tx, ok := e.c.Transmit()
	require.True(t, ok)
	assert.ErrorIs(t, tx.Consume(0, func([]byte) error { return nil }), ErrInvalidLength)
}
