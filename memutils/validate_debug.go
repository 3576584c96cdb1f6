//go:build debug_kmem

package memutils

import "unsafe"

const (
	// DebugEnabled is true when the package is built with the debug_kmem build tag
	DebugEnabled = true
)

// DebugPoison fills size bytes at ptr with PoisonByte so that reads of uninitialized or freed
// memory are easy to spot. This method no-ops unless the debug_kmem build tag is present.
func DebugPoison(ptr unsafe.Pointer, size int) {
	dest := unsafe.Slice((*byte)(ptr), size)
	for i := range dest {
		dest[i] = PoisonByte
	}
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_kmem build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}
