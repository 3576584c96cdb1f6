package memutils

import "github.com/pkg/errors"

var (
	// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
	PowerOfTwoError error = errors.New("number must be a power of two")

	// ErrNoUsableMemory is returned when the firmware memory map, or what is left of it after
	// metadata is reserved, contains no memory that can be handed out. Boot cannot proceed.
	ErrNoUsableMemory error = errors.New("no physical usable memory regions found")

	// ErrOutOfMemory is returned by the early page allocator once every region is exhausted
	ErrOutOfMemory error = errors.New("out of physical memory")

	// ErrTooManyRegions is returned when the memory map has more regions than can be tracked
	ErrTooManyRegions error = errors.New("too many memory regions")

	// ErrAlreadyArmed is returned when a process-wide allocator is initialized a second time
	ErrAlreadyArmed error = errors.New("allocator has already been initialized")

	// ErrNotArmed is the panic value used when an allocator is used before it is initialized
	ErrNotArmed error = errors.New("allocator used before initialization")
)
