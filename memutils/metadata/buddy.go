package metadata

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
	"github.com/ddos-os/kmem/mem"
	"github.com/ddos-os/kmem/memutils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// MaxOrder is the largest order that can be allocated from a BuddyTree: 2^11 pages, or 8MiB
const MaxOrder = 11

// TreeStorageLen returns the number of Block values that NewBuddyTree needs in order to describe
// numPages pages. Level k of the tree holds ceil(numPages / 2^k) nodes.
func TreeStorageLen(numPages int) int {
	total := 0
	for order := 0; order <= MaxOrder; order++ {
		total += levelLen(numPages, order)
	}
	return total
}

func levelLen(numPages int, order int) int {
	return (numPages + (1 << order) - 1) >> order
}

// BuddyTree is a binary buddy allocator whose tree is stored as one flat Block array per order.
// Node i of level k covers pages [i*2^k, (i+1)*2^k). Children that would lie past the end of the
// zone do not exist and are treated as used, so partial subtrees at the tail can never be handed
// out whole.
//
// BuddyTree does not own the memory it describes, nor the storage it was built in. It is not
// safe for concurrent use.
type BuddyTree struct {
	numPages        int
	levels          [MaxOrder + 1][]Block
	freePages       int
	allocationCount int
}

// NewBuddyTree builds a tree describing numPages free pages inside storage, which must be at
// least TreeStorageLen(numPages) long. storage is overwritten.
func NewBuddyTree(numPages int, storage []Block) (*BuddyTree, error) {
	if numPages <= 0 {
		return nil, cerrors.Newf("buddy tree must describe at least one page, but %d were requested", numPages)
	}

	needed := TreeStorageLen(numPages)
	if len(storage) < needed {
		return nil, cerrors.Newf("buddy tree for %d pages requires %d blocks of storage, but only %d were provided",
			numPages, needed, len(storage))
	}

	tree := &BuddyTree{
		numPages:  numPages,
		freePages: numPages,
	}

	MarkUsed(storage[:needed])

	offset := 0
	for order := 0; order <= MaxOrder; order++ {
		length := levelLen(numPages, order)
		tree.levels[order] = storage[offset : offset+length : offset+length]
		offset += length
	}

	leaves := tree.levels[0]
	for i := range leaves {
		leaves[i] = FreeBlock(0)
	}

	for order := 1; order <= MaxOrder; order++ {
		level := tree.levels[order]
		for i := range level {
			level[i] = parentState(tree.child(order, i, 0), tree.child(order, i, 1), order)
		}
	}

	return tree, nil
}

// parentState derives a node's Block from its two children. Two fully free buddies merge into a
// fully free parent; otherwise the parent advertises the larger of its children.
func parentState(left, right Block, order int) Block {
	if left == FreeBlock(order-1) && right == FreeBlock(order-1) {
		return FreeBlock(order)
	}

	if left > right {
		return left
	}
	return right
}

// child returns the state of the left (side 0) or right (side 1) child of node index at order.
// Children past the end of the zone are used.
func (t *BuddyTree) child(order int, index int, side int) Block {
	level := t.levels[order-1]
	childIndex := index*2 + side
	if childIndex >= len(level) {
		return BlockUsed
	}
	return level[childIndex]
}

// propagate recomputes every ancestor of the node at order/index, stopping early once an
// ancestor is already up to date
func (t *BuddyTree) propagate(order int, index int) {
	for order < MaxOrder {
		index /= 2
		order++

		state := parentState(t.child(order, index, 0), t.child(order, index, 1), order)
		if t.levels[order][index] == state {
			return
		}
		t.levels[order][index] = state
	}
}

// isAllocatedUnit returns true if the node was handed out by Alloc as a whole. Its children keep
// the fully-free state they had when it was allocated.
func (t *BuddyTree) isAllocatedUnit(order int, index int) bool {
	if t.levels[order][index] != BlockUsed {
		return false
	}

	if order == 0 {
		return true
	}

	return t.child(order, index, 0) == FreeBlock(order-1) && t.child(order, index, 1) == FreeBlock(order-1)
}

func (t *BuddyTree) NumPages() int { return t.numPages }

func (t *BuddyTree) FreePages() int { return t.freePages }

func (t *BuddyTree) AllocationCount() int { return t.allocationCount }

func (t *BuddyTree) IsEmpty() bool { return t.allocationCount == 0 }

// Level returns the nodes of the tree at the provided order. The returned slice aliases the
// tree's storage and must not be modified.
func (t *BuddyTree) Level(order int) []Block {
	return t.levels[order]
}

func (t *BuddyTree) LargestFreeOrder() int {
	largest := BlockUsed
	for _, node := range t.levels[MaxOrder] {
		if node > largest {
			largest = node
		}
	}
	return largest.LargestFreeOrder()
}

func (t *BuddyTree) Alloc(order int) (int, bool) {
	if order < 0 || order > MaxOrder {
		return 0, false
	}

	wanted := FreeBlock(order)

	index := -1
	for i, node := range t.levels[MaxOrder] {
		if node >= wanted {
			index = i
			break
		}
	}

	if index < 0 {
		return 0, false
	}

	for level := MaxOrder; level > order; level-- {
		index *= 2
		if t.levels[level-1][index] < wanted {
			index++
		}
	}

	t.levels[order][index] = BlockUsed
	t.propagate(order, index)

	t.freePages -= 1 << order
	t.allocationCount++

	return index << order, true
}

func (t *BuddyTree) Free(page int, pages int) {
	if pages <= 0 || !memutils.IsPow2(pages) {
		panic(cerrors.AssertionFailedf("attempted to free %d pages, which is not a power of two", pages))
	}

	order := bits.TrailingZeros(uint(pages))
	if order > MaxOrder {
		panic(cerrors.AssertionFailedf("attempted to free %d pages, which is above the maximum order %d", pages, MaxOrder))
	}

	if page < 0 || page+pages > t.numPages {
		panic(cerrors.AssertionFailedf("attempted to free pages [%d, %d), which lie outside of a zone with %d pages",
			page, page+pages, t.numPages))
	}

	if page&(pages-1) != 0 {
		panic(cerrors.AssertionFailedf("attempted to free %d pages at page %d, which is not aligned to the block size", pages, page))
	}

	index := page >> order
	if !t.isAllocatedUnit(order, index) {
		panic(cerrors.AssertionFailedf("attempted to free %d pages at page %d, which were not allocated as a unit", pages, page))
	}

	t.levels[order][index] = FreeBlock(order)
	t.propagate(order, index)

	t.freePages += pages
	t.allocationCount--
}

func (t *BuddyTree) VisitFreeBlocks(visit func(page int, order int) bool) {
	for index := range t.levels[MaxOrder] {
		if !t.visitFree(MaxOrder, index, visit) {
			return
		}
	}
}

func (t *BuddyTree) visitFree(order int, index int, visit func(page int, order int) bool) bool {
	node := t.levels[order][index]
	if node == FreeBlock(order) {
		return visit(index<<order, order)
	}

	if order == 0 || t.isAllocatedUnit(order, index) {
		return true
	}

	for side := 0; side < 2; side++ {
		childIndex := index*2 + side
		if childIndex >= len(t.levels[order-1]) {
			break
		}
		if !t.visitFree(order-1, childIndex, visit) {
			return false
		}
	}

	return true
}

// Validate walks the whole tree and checks that every node agrees with its children and that
// the free page count matches the tree.
func (t *BuddyTree) Validate() error {
	for order := 0; order <= MaxOrder; order++ {
		if len(t.levels[order]) != levelLen(t.numPages, order) {
			return cerrors.Newf("level %d has %d nodes but should have %d", order, len(t.levels[order]), levelLen(t.numPages, order))
		}
	}

	free := 0
	for index := range t.levels[MaxOrder] {
		subtreeFree, err := t.validateNode(MaxOrder, index)
		if err != nil {
			return err
		}
		free += subtreeFree
	}

	if free != t.freePages {
		return cerrors.Newf("tree contains %d free pages but %d were recorded", free, t.freePages)
	}

	if t.freePages > t.numPages || t.freePages < 0 {
		return cerrors.Newf("free page count %d is out of range for a zone of %d pages", t.freePages, t.numPages)
	}

	return nil
}

func (t *BuddyTree) validateNode(order int, index int) (int, error) {
	node := t.levels[order][index]
	if node > FreeBlock(order) {
		return 0, cerrors.Newf("node %d at order %d has state %s, which is larger than the node", index, order, node)
	}

	if order == 0 {
		if node == FreeBlock(0) {
			return 1, nil
		}
		return 0, nil
	}

	if t.isAllocatedUnit(order, index) {
		return 0, nil
	}

	expected := parentState(t.child(order, index, 0), t.child(order, index, 1), order)
	if node != expected {
		return 0, cerrors.Newf("node %d at order %d has state %s, but its children require %s", index, order, node, expected)
	}

	free := 0
	for side := 0; side < 2; side++ {
		childIndex := index*2 + side
		if childIndex >= len(t.levels[order-1]) {
			break
		}

		childFree, err := t.validateNode(order-1, childIndex)
		if err != nil {
			return 0, err
		}
		free += childFree
	}

	return free, nil
}

func (t *BuddyTree) AddStatistics(stats *memutils.Statistics) {
	stats.RegionCount++
	stats.RegionBytes += t.numPages * mem.PageSize
	stats.AllocationCount += t.allocationCount
	stats.AllocationBytes += (t.numPages - t.freePages) * mem.PageSize
}

func (t *BuddyTree) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	t.AddStatistics(&stats.Statistics)

	t.VisitFreeBlocks(func(page int, order int) bool {
		stats.AddFreeRange((1 << order) * mem.PageSize)
		return true
	})
}

func (t *BuddyTree) BlockJsonData(json *jwriter.ObjectState) {
	freeBlocks := 0
	t.VisitFreeBlocks(func(page int, order int) bool {
		freeBlocks++
		return true
	})

	json.Name("TotalPages").Int(t.numPages)
	json.Name("FreePages").Int(t.freePages)
	json.Name("Allocations").Int(t.allocationCount)
	json.Name("FreeBlockCount").Int(freeBlocks)
	json.Name("LargestFreeOrder").Int(t.LargestFreeOrder())
}
