//go:build !tinygo

package gemsim

import "errors"

var (
	ErrQueuePointer = errors.New("gemsim: queue pointer outside ring")
	ErrNotAttached  = errors.New("gemsim: rings not attached")
	ErrRxDisabled   = errors.New("gemsim: receiver disabled")
	ErrFrameSize    = errors.New("gemsim: invalid frame size")
	ErrFiltered     = errors.New("gemsim: frame rejected by address filter")
	ErrOverrun      = errors.New("gemsim: no receive buffer available")
)
