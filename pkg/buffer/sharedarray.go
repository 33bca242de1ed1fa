package buffer

import "math"

// SharedArray is a host view of a GPU-visible array of 32-bit words.
// The host may read and write it freely before a kernel starts and
// after a kernel completes; writes during kernel execution are
// undefined.
type SharedArray struct {
	obj  Object
	addr uint32
	size int
}

// NewSharedArray allocates a shared array of n words.
func NewSharedArray(obj Object, n int) (*SharedArray, error) {
	addr, err := obj.Alloc(n)
	if err != nil {
		return nil, err
	}
	return &SharedArray{obj: obj, addr: addr, size: n}, nil
}

// Address returns the device address of element 0.
func (a *SharedArray) Address() uint32 { return a.addr }

// Size returns the number of words.
func (a *SharedArray) Size() int { return a.size }

// Get reads element i as an integer.
func (a *SharedArray) Get(i int) int32 {
	return int32(a.obj.Load(a.addr + uint32(4*i)))
}

// Set writes element i as an integer.
func (a *SharedArray) Set(i int, v int32) {
	a.obj.Store(a.addr+uint32(4*i), uint32(v))
}

// GetF reads element i as a float.
func (a *SharedArray) GetF(i int) float32 {
	return math.Float32frombits(a.obj.Load(a.addr + uint32(4*i)))
}

// SetF writes element i as a float.
func (a *SharedArray) SetF(i int, v float32) {
	a.obj.Store(a.addr+uint32(4*i), math.Float32bits(v))
}

// Free releases the array's storage.
func (a *SharedArray) Free() { a.obj.Free(a.addr) }
