// Package ethdump writes Ethernet frames in a dense, human readable hex
// format. It does not allocate, so it can be used from firmware debug
// output as well.
package ethdump

import (
	"encoding/hex"
	"io"
)

// HWAddr writes a MAC address using ':' as separator, followed by a newline.
func HWAddr(w io.Writer, hw []byte) {
	var buf [2]byte
	for i, b := range hw {
		if i > 0 {
			io.WriteString(w, ":")
		}
		hex.Encode(buf[:], []byte{b})
		w.Write(buf[:])
	}
	io.WriteString(w, "\n")
}

// Frame writes a header summary of frame and the hex dump of its payload.
// Frames too short to carry an Ethernet header are dumped as a whole.
func Frame(w io.Writer, frame []byte) {
	if len(frame) < 14 {
		io.WriteString(w, "Short frame:\n")
		Hex(w, frame)
		return
	}
	var buf [4]byte

	io.WriteString(w, "Source:      ")
	HWAddr(w, frame[6:12])
	io.WriteString(w, "Destination: ")
	HWAddr(w, frame[0:6])

	io.WriteString(w, "EtherType: 0x")
	hex.Encode(buf[:], frame[12:14])
	w.Write(buf[:])
	io.WriteString(w, "\n\nData:\n")

	Hex(w, frame[14:])
}

// Hex writes data 32 bytes per line, prefixed by the offset and grouped
// by 8 bytes.
func Hex(w io.Writer, data []byte) {
	var buf [4]byte
	for i := 0; i < len(data); i += 32 {
		end := min(i+32, len(data))

		n := hex.Encode(buf[:], []byte{byte(i >> 8), byte(i)})
		w.Write(buf[:n])
		io.WriteString(w, ": ")

		for j := i; j < end; j++ {
			if j > i {
				if (j-i)%8 == 0 {
					io.WriteString(w, " ")
				}
				if (j-i)%16 == 0 {
					io.WriteString(w, "  ")
				}
			}
			hex.Encode(buf[:2], data[j:j+1])
			w.Write(buf[:2])
			io.WriteString(w, " ")
		}
		io.WriteString(w, "\n")
	}
}
