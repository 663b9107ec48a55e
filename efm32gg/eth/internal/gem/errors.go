package gem

import "errors"

var (
	ErrRingTooShort = errors.New("gem: ring needs at least two descriptors")
	ErrRegionSize   = errors.New("gem: region size does not match ring length")
	ErrMisaligned   = errors.New("gem: descriptor list not 8-byte aligned")
	ErrConfig       = errors.New("gem: invalid configuration")

	// ErrExhausted is returned when a frame does not fit into the
	// transmit window. Retry once more descriptors have been reclaimed.
	ErrExhausted = errors.New("gem: transmit buffers exhausted")

	ErrInvalidLength = errors.New("gem: invalid frame length")
	ErrFrameTooLong  = errors.New("gem: received frame exceeds maximum size")
	ErrMDIOTimeout   = errors.New("gem: mdio operation timed out")
)
