package testboard

// CacheFake records cache maintenance calls without touching real memory,
// for asserting that drivers invalidate/clean the ranges spec.md §5
// requires around a DMA transfer.
type CacheFake struct {
	Invalidated           []Range
	Cleaned               []Range
	CleanedAndInvalidated []Range
}

// Range is a half-open byte range passed to a cache maintenance call.
type Range struct {
	Addr uint32
	Size int
}

func NewCacheFake() *CacheFake {
	return &CacheFake{}
}

func (c *CacheFake) Invalidate(addr uint32, size int) {
	c.Invalidated = append(c.Invalidated, Range{addr, size})
}

func (c *CacheFake) Clean(addr uint32, size int) {
	c.Cleaned = append(c.Cleaned, Range{addr, size})
}

func (c *CacheFake) CleanAndInvalidate(addr uint32, size int) {
	c.CleanedAndInvalidated = append(c.CleanedAndInvalidated, Range{addr, size})
}
