//go:build !tinygo

package volatile

import (
	"sync"
	"sync/atomic"
)

// Register32 mirrors runtime/volatile.Register32.
type Register32 struct {
	Reg uint32
}

// StoreHook computes the value that ends up in a register when software
// stores v into it while it holds old.
type StoreHook func(old, v uint32) uint32

var hooks struct {
	sync.RWMutex
	m map[*Register32]StoreHook
}

// Hook attaches h to r. Only software stores (Set and the bit helpers)
// pass through the hook; Poke does not.
func Hook(r *Register32, h StoreHook) {
	hooks.Lock()
	if hooks.m == nil {
		hooks.m = make(map[*Register32]StoreHook)
	}
	hooks.m[r] = h
	hooks.Unlock()
}

// Unhook removes a hook installed with Hook.
func Unhook(r *Register32) {
	hooks.Lock()
	delete(hooks.m, r)
	hooks.Unlock()
}

func hookOf(r *Register32) StoreHook {
	hooks.RLock()
	h := hooks.m[r]
	hooks.RUnlock()
	return h
}

// Poke stores v the way the peripheral itself would, bypassing hooks.
func Poke(r *Register32, v uint32) {
	atomic.StoreUint32(&r.Reg, v)
}

// PokeBits atomically sets and clears bits on behalf of the peripheral.
func PokeBits(r *Register32, set, clear uint32) {
	for {
		old := atomic.LoadUint32(&r.Reg)
		if atomic.CompareAndSwapUint32(&r.Reg, old, old&^clear|set) {
			return
		}
	}
}

func (r *Register32) Get() uint32 {
	return atomic.LoadUint32(&r.Reg)
}

func (r *Register32) Set(value uint32) {
	h := hookOf(r)
	if h == nil {
		atomic.StoreUint32(&r.Reg, value)
		return
	}
	for {
		old := atomic.LoadUint32(&r.Reg)
		if atomic.CompareAndSwapUint32(&r.Reg, old, h(old, value)) {
			return
		}
	}
}

func (r *Register32) SetBits(value uint32) {
	r.Set(r.Get() | value)
}

func (r *Register32) ClearBits(value uint32) {
	r.Set(r.Get() &^ value)
}

func (r *Register32) HasBits(value uint32) bool {
	return r.Get()&value != 0
}

func (r *Register32) ReplaceBits(value uint32, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | value<<pos)
}
