// Package volatile provides the register cell shared between driver code
// and a DMA-capable peripheral.
//
// With TinyGo, Register32 is runtime/volatile.Register32, so loads and stores
// are never cached or reordered by the compiler. On the host the same API is
// backed by atomic operations, and a peripheral model may attach store hooks
// to registers that have side effects on write.
package volatile
