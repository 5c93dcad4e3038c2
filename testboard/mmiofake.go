// Package testboard provides fakes for the peripherals driven by the dma,
// sound, and usb packages so their state machines can be exercised under
// `go test` without real hardware, mirroring the fake-bus idiom the
// periph.io corpus uses for its hardware-independent tests.
package testboard

import (
	"sync"

	"github.com/bcm2835go/bcm2835go/mmio"
)

// MMIOFake is an in-memory register file satisfying mmio.Bus. Every
// address reads as zero until written or Set; writes are stored, and Log
// records every write (reads are not recorded) for assertions.
type MMIOFake struct {
	mu   sync.Mutex
	regs map[uint32]uint64
	Log  []Access
	// OnWrite32, if set, is invoked synchronously after every 32-bit
	// write, allowing tests to model peripheral side effects such as
	// clearing status bits or raising an interrupt.
	OnWrite32 func(addr uint32, val uint32)
}

// Access records a single register access for test assertions.
type Access struct {
	Write bool
	Addr  uint32
	Val   uint64
}

// NewMMIOFake returns an empty fake register file.
func NewMMIOFake() *MMIOFake {
	return &MMIOFake{regs: make(map[uint32]uint64)}
}

func (f *MMIOFake) Read32(addr uint32) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint32(f.regs[addr])
}

func (f *MMIOFake) Write32(addr uint32, val uint32) {
	f.mu.Lock()
	f.regs[addr] = uint64(val)
	f.Log = append(f.Log, Access{Write: true, Addr: addr, Val: uint64(val)})
	cb := f.OnWrite32
	f.mu.Unlock()

	if cb != nil {
		cb(addr, val)
	}
}

func (f *MMIOFake) Read64(addr uint32) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[addr]
}

func (f *MMIOFake) Write64(addr uint32, val uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[addr] = val
	f.Log = append(f.Log, Access{Write: true, Addr: addr, Val: val})
}

func (f *MMIOFake) PeripheralEntry() {}
func (f *MMIOFake) PeripheralExit()  {}

var _ mmio.Bus = (*MMIOFake)(nil)

// Set seeds a register value without recording an access, for establishing
// preconditions (e.g. a status register reading as "end of transfer").
func (f *MMIOFake) Set(addr uint32, val uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[addr] = uint64(val)
}
