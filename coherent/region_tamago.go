//go:build tamago

package coherent

import "unsafe"

// NewHardwareRegion maps the reserved DMA-visible window at [start, start+size)
// as the backing store for a Region. The application must guarantee this
// range is never used by the Go runtime heap (runtime.ramStart/ramSize
// configured accordingly, as dma.Init documents in the teacher package) and
// that it carries device-visible memory attributes requiring no explicit
// cache maintenance for writes to become visible to bus masters.
func NewHardwareRegion(start uint32, size int) *Region {
	mem := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(start))), size)
	return newRegion(start, mem)
}
