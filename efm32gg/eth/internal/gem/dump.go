package gem

import "io"

func dumpDesc(w io.Writer, i int, word0, word1 uint32) {
	var outbuf [16]byte

	w.Write([]byte("Desc "))
	n := formatDec(outbuf[:], i)
	w.Write(outbuf[:n])
	w.Write([]byte(":\n"))
	formatDescWord(w, 0, word0)
	formatDescWord(w, 1, word1)
}

func formatDescWord(w io.Writer, i int, b uint32) {
	var outbuf [9]byte

	w.Write([]byte("  Word "))
	outbuf[0] = '0' + byte(i)
	w.Write(outbuf[:1])
	w.Write([]byte(": 0x"))

	// Write 8 hex digits
	for i := range 8 {
		n := b & 0xF
		if n < 10 {
			outbuf[7-i] = '0' + byte(n)
		} else {
			outbuf[7-i] = 'a' + byte(n-10)
		}
		b >>= 4
	}
	outbuf[8] = '\n'
	w.Write(outbuf[:9])
}

func formatDec(buf []byte, v int) int {
	var tmp [16]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = '0' + byte(v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return copy(buf, tmp[i:])
}
