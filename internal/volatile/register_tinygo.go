//go:build tinygo

package volatile

import "runtime/volatile"

type Register32 = volatile.Register32
