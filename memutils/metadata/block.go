package metadata

import "fmt"

// Block is the one-byte state of a node in the buddy tree. The zero value marks the node as used,
// so a freshly zeroed tree has nothing available. Any other value N means the largest block that
// can be allocated from the node's subtree has order N-1.
type Block uint8

const (
	// BlockUsed marks a node that has no free pages beneath it, or that was handed out as a unit
	BlockUsed Block = 0
)

// FreeBlock returns the Block value for a node whose largest free block has the given order
func FreeBlock(order int) Block {
	return Block(order + 1)
}

// IsUsed returns true if no allocation can be made from the node's subtree
func (b Block) IsUsed() bool {
	return b == BlockUsed
}

// LargestFreeOrder returns the order of the largest block available beneath this node, or -1
// when the node is used
func (b Block) LargestFreeOrder() int {
	return int(b) - 1
}

func (b Block) String() string {
	if b == BlockUsed {
		return "Used"
	}
	return fmt.Sprintf("Free(%d)", b.LargestFreeOrder())
}

// MarkUsed resets every node in storage to BlockUsed
func MarkUsed(storage []Block) {
	clear(storage)
}
