package memutils

import "unsafe"

// PoisonByte is written over freshly handed out frames and freed heap payloads in debug builds
const PoisonByte byte = 0xB8

// FreshFill is the byte ClearFresh writes: zero normally, PoisonByte in debug builds
func FreshFill() byte {
	if DebugEnabled {
		return PoisonByte
	}
	return 0
}

// ClearFresh prepares size bytes at ptr that are about to be handed out for the first time.
func ClearFresh(ptr unsafe.Pointer, size int) {
	clear(unsafe.Slice((*byte)(ptr), size))
	if DebugEnabled {
		DebugPoison(ptr, size)
	}
}
