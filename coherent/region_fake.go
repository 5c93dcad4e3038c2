//go:build !tamago

package coherent

// NewFakeRegion backs a Region with an ordinary Go byte slice rather than
// a physical address window, so the allocator's first-fit, alignment,
// boundary, and zeroing behavior -- and every driver built on top of it --
// can be exercised under `go test`. The base address is chosen away from
// zero so "Alloc never returns the null address" stays distinguishable
// from a lookup miss.
func NewFakeRegion(size int) *Region {
	return newRegion(0x1000, make([]byte, size))
}
