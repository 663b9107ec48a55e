package gem

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingWrap(t *testing.T) {
	for n := 2; n <= 8; n++ {
		rx, tx := newRings(t, n, n)
		for i := 0; i < n; i++ {
			want := NoWrap
			if i == n-1 {
				want = Wrap
			}
			assert.Equal(t, want, rx.Desc(i).Wrap(), "rx n=%d i=%d", n, i)
			assert.Equal(t, want, tx.Desc(i).Wrap(), "tx n=%d i=%d", n, i)
			assert.Equal(t, Hardware, rx.Desc(i).Ownership())
			assert.Equal(t, Software, tx.Desc(i).Ownership())
		}
	}
}

func TestRingBuffers(t *testing.T) {
	rx, _ := newRings(t, 4, 2)
	for i := 0; i < 4; i++ {
		require.Len(t, rx.Buffer(i), BufferSize)
		assert.Equal(t, bufAddr(rx.Buffer(i)), rx.Desc(i).Addr())
	}
	assert.Equal(t, bufAddr(rx.Buffer(0))+BufferSize, rx.Desc(1).Addr())
}

func TestRingErrors(t *testing.T) {
	_, err := NewRxRing(make([]RxDesc, 1), make([]uint32, BufferSize/4))
	assert.ErrorIs(t, err, ErrRingTooShort)

	_, err = NewTxRing(make([]TxDesc, 4), make([]uint32, 3*BufferSize/4))
	assert.ErrorIs(t, err, ErrRegionSize)

	// Offset the descriptor list by one word.
	words := make([]RxDesc, 5)
	raw := unsafeWords(words)
	misaligned := descsAt(raw[1:])
	_, err = NewRxRing(misaligned, make([]uint32, 4*BufferSize/4))
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestRingDump(t *testing.T) {
	_, tx := newRings(t, 2, 2)
	var buf bytes.Buffer
	tx.Dump(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Desc 1:", lines[3])
	assert.Equal(t, "  Word 1: 0xc0000000", lines[5])
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 2, distance(1, 3, 4))
	assert.Equal(t, 1, distance(3, 0, 4))
	assert.Equal(t, 0, distance(2, 2, 4))
	assert.Equal(t, 3, mod(-1, 4))
}
