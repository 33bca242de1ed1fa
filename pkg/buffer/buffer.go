// Package buffer provides the buffer-object service the kernel driver
// and the execution sinks share: word-granular allocation of memory
// visible to both the host and the (emulated or real) GPU, with a
// device address per allocation.
package buffer

import (
	"github.com/vidcore/v3dlib/pkg/diag"
)

// Object is the buffer-object service. Alloc returns the base device
// address of a fresh region of n words; Load and Store give host access
// to a single word by device address.
type Object interface {
	Alloc(numWords int) (addr uint32, err error)
	Free(addr uint32)
	Load(addr uint32) uint32
	Store(addr uint32, val uint32)
}

// baseAddr keeps device address 0 invalid, the way the mailbox
// allocator never hands out the null bus address.
const baseAddr = 0x1000

// Heap is the in-process Object used under emulation. Allocation is a
// bump pointer; Free releases only the most recent region, which is
// all the kernel lifecycle needs.
type Heap struct {
	words []uint32
	next  int
	sizes map[uint32]int
}

// NewHeap creates a heap of the given capacity in words.
func NewHeap(capacityWords int) *Heap {
	return &Heap{
		words: make([]uint32, capacityWords),
		sizes: make(map[uint32]int),
	}
}

// Alloc reserves numWords words and returns their device address.
func (h *Heap) Alloc(numWords int) (uint32, error) {
	if h.next+numWords > len(h.words) {
		return 0, diag.New(diag.DispatchError,
			"buffer object exhausted: %d words requested, %d free",
			numWords, len(h.words)-h.next)
	}
	addr := uint32(baseAddr + 4*h.next)
	h.sizes[addr] = numWords
	h.next += numWords
	return addr, nil
}

// Free releases an allocation. Only the most recent region actually
// returns its space.
func (h *Heap) Free(addr uint32) {
	n, ok := h.sizes[addr]
	if !ok {
		return
	}
	delete(h.sizes, addr)
	if int(addr-baseAddr)/4+n == h.next {
		h.next -= n
	}
}

func (h *Heap) index(addr uint32) int {
	return int(addr-baseAddr) / 4
}

// InBounds reports whether a device address falls inside the heap.
func (h *Heap) InBounds(addr uint32) bool {
	i := h.index(addr)
	return addr >= baseAddr && i >= 0 && i < len(h.words)
}

// Load reads the word at a device address.
func (h *Heap) Load(addr uint32) uint32 {
	if !h.InBounds(addr) {
		return 0
	}
	return h.words[h.index(addr)]
}

// Store writes the word at a device address.
func (h *Heap) Store(addr uint32, val uint32) {
	if !h.InBounds(addr) {
		return
	}
	h.words[h.index(addr)] = val
}
