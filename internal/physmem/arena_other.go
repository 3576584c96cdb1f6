//go:build !unix

package physmem

import (
	"unsafe"

	"github.com/ddos-os/kmem/mem"
)

// Without mmap, over-allocate from the Go heap and trim to a page boundary. The Go heap does not
// move objects, so addresses stay stable for the arena's lifetime.
func mapAnonymous(size int) ([]byte, error) {
	raw := make([]byte, size+mem.PageSize)
	host := uintptr(unsafe.Pointer(&raw[0]))
	skip := int((mem.PageSize - host%mem.PageSize) % mem.PageSize)
	return raw[skip : skip+size : skip+size], nil
}

func unmapAnonymous(data []byte) error {
	return nil
}
