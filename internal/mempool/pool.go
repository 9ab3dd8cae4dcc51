// Package mempool recycles the float32 buffers that back classifier input
// tensors. Every sampled frame allocates one [digits, c, h, w] batch, so a
// busy live run would otherwise churn the allocator at the capture rate.
package mempool

import "sync"

const step = 1024

var pools sync.Map // size class -> *sync.Pool

// sizeClass rounds n up to the next multiple of 1024, minimum 1024.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor(cls int) *sync.Pool {
	if p, ok := pools.Load(cls); ok {
		return p.(*sync.Pool)
	}
	p, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]float32, cls)
		return &buf
	}})
	return p.(*sync.Pool)
}

// GetFloat32 returns a zeroed buffer of length n. Hand it back with
// PutFloat32 once nothing references it.
func GetFloat32(n int) []float32 {
	if n < 0 {
		n = 0
	}
	bp := poolFor(sizeClass(n)).Get().(*[]float32)
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// PutFloat32 recycles buf. Nil and foreign-sized slices are ignored.
func PutFloat32(buf []float32) {
	if buf == nil {
		return
	}
	c := cap(buf)
	if c < step || c%step != 0 {
		return
	}
	buf = buf[:c]
	poolFor(c).Put(&buf)
}
