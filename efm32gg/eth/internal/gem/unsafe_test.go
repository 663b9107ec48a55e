package gem

import "unsafe"

func unsafeWords(d []RxDesc) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(unsafe.SliceData(d))), len(d)*2)
}

// descsAt reinterprets words as four descriptors, wherever they start.
func descsAt(words []uint32) []RxDesc {
	return unsafe.Slice((*RxDesc)(unsafe.Pointer(unsafe.SliceData(words))), 4)
}
