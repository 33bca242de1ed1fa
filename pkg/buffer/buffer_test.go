package buffer

import "testing"

func TestHeapAllocAndAccess(t *testing.T) {
	h := NewHeap(64)
	addr, err := h.Alloc(4)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if addr == 0 {
		t.Fatal("device address 0 must stay invalid")
	}
	h.Store(addr, 42)
	h.Store(addr+4, 7)
	if h.Load(addr) != 42 || h.Load(addr+4) != 7 {
		t.Error("stored words should read back")
	}
}

func TestHeapExhaustion(t *testing.T) {
	h := NewHeap(8)
	if _, err := h.Alloc(9); err == nil {
		t.Error("allocating past capacity should fail")
	}
}

func TestHeapFreeReleasesTail(t *testing.T) {
	h := NewHeap(16)
	a, _ := h.Alloc(8)
	h.Free(a)
	b, err := h.Alloc(8)
	if err != nil {
		t.Fatalf("alloc after free: %v", err)
	}
	if b != a {
		t.Errorf("tail free should release the space: %#x vs %#x", a, b)
	}
}

func TestSharedArray(t *testing.T) {
	h := NewHeap(64)
	arr, err := NewSharedArray(h, 8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	arr.Set(0, -3)
	if arr.Get(0) != -3 {
		t.Error("int round trip")
	}
	arr.SetF(1, 2.5)
	if arr.GetF(1) != 2.5 {
		t.Error("float round trip")
	}
	if arr.Size() != 8 {
		t.Errorf("Size = %d", arr.Size())
	}
	// Element addresses are word-spaced from the base.
	if h.Load(arr.Address()) != uint32(0xfffffffd) {
		t.Error("element 0 should live at the base address")
	}
}
