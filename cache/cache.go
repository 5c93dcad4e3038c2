// Package cache provides data cache maintenance by virtual address range,
// used before handing a buffer to a DMA master and after it writes one
// back, per spec.md §5's ordering guarantees.
package cache

// Maintainer performs cache maintenance operations over a virtual address
// range. The real implementation issues the ARM cache maintenance
// instructions (clean/invalidate by MVA); CacheFake in testboard
// records calls for test assertions.
type Maintainer interface {
	// Invalidate discards cached data in [addr, addr+size) without
	// writing it back, used after a device-to-memory transfer so the
	// CPU observes the data the DMA master wrote.
	Invalidate(addr uint32, size int)

	// Clean writes cached data in [addr, addr+size) back to memory
	// without discarding it from the cache.
	Clean(addr uint32, size int)

	// CleanAndInvalidate writes back and then discards the range, used
	// before a memory-to-device transfer so the DMA master sees the
	// final values and the CPU does not read stale cached data that a
	// device later overwrites.
	CleanAndInvalidate(addr uint32, size int)
}

// hardware is the real Maintainer, implemented via the assembly routines
// in cache_tamago_arm.s.
type hardware struct{}

// NewHardwareMaintainer returns the Maintainer that issues real ARM cache
// maintenance instructions. Must only be used with GOOS=tamago.
func NewHardwareMaintainer() Maintainer {
	return hardware{}
}

func (hardware) Invalidate(addr uint32, size int) {
	invalidateRange(addr, uint32(size))
}

func (hardware) Clean(addr uint32, size int) {
	cleanRange(addr, uint32(size))
}

func (hardware) CleanAndInvalidate(addr uint32, size int) {
	cleanAndInvalidateRange(addr, uint32(size))
}
