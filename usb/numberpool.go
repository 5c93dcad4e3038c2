package usb

import "sync"

// NumberPool allocates small integers from a [first, last] range, freed on
// device removal, per spec.md §5's "USB address/slot allocation" invariant
// and CNumberPool's usage for device addresses (usbdevice.cpp) and mass
// storage device numbers (usbmassdevice.cpp).
type NumberPool struct {
	mu    sync.Mutex
	first int
	last  int
	used  map[int]bool
}

// Invalid is returned by Allocate when the pool is exhausted.
const Invalid = -1

// NewNumberPool constructs a pool covering [first, last] inclusive.
func NewNumberPool(first, last int) *NumberPool {
	return &NumberPool{first: first, last: last, used: make(map[int]bool)}
}

// Allocate returns the lowest free number in range, or Invalid if none
// remain.
func (p *NumberPool) Allocate() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	for n := p.first; n <= p.last; n++ {
		if !p.used[n] {
			p.used[n] = true
			return n
		}
	}
	return Invalid
}

// Free returns n to the pool.
func (p *NumberPool) Free(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.used, n)
}
