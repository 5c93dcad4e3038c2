package mmio

import "sync"

// Bus abstracts a peripheral's register window so that drivers can be
// exercised under `go test` against a fake implementation instead of the
// real physical address space. PeripheralEntry/PeripheralExit bracket a
// sequence of accesses to a single peripheral with the data-synchronization
// barrier spec.md §5 requires between a write and a following read on the
// same device.
type Bus interface {
	Read32(addr uint32) uint32
	Write32(addr uint32, val uint32)
	Read64(addr uint32) uint64
	Write64(addr uint32, val uint64)

	// PeripheralEntry/PeripheralExit bracket a register access sequence,
	// inserting the barrier required before the following access is
	// observed by another bus master or CPU.
	PeripheralEntry()
	PeripheralExit()
}

// hardwareBus is the real Bus backed by the physical address space via the
// package-level Read32/Write32 functions.
type hardwareBus struct {
	mu sync.Mutex
}

// NewHardwareBus returns the Bus implementation that talks to physical
// memory-mapped registers. Must only be used with GOOS=tamago.
func NewHardwareBus() Bus {
	return &hardwareBus{}
}

func (b *hardwareBus) Read32(addr uint32) uint32      { return Read32(addr) }
func (b *hardwareBus) Write32(addr uint32, val uint32) { Write32(addr, val) }
func (b *hardwareBus) Read64(addr uint32) uint64      { return Read64(addr) }
func (b *hardwareBus) Write64(addr uint32, val uint64) { Write64(addr, val) }

func (b *hardwareBus) PeripheralEntry() {
	b.mu.Lock()
	dataSyncBarrier()
}

func (b *hardwareBus) PeripheralExit() {
	dataSyncBarrier()
	b.mu.Unlock()
}
