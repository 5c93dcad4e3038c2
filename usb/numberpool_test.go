package usb

import "testing"

func TestNumberPoolAllocatesLowestFree(t *testing.T) {
	p := NewNumberPool(1, 3)

	a := p.Allocate()
	b := p.Allocate()
	if a != 1 || b != 2 {
		t.Fatalf("got %d, %d; want 1, 2", a, b)
	}

	p.Free(a)
	c := p.Allocate()
	if c != 1 {
		t.Fatalf("expected freed number 1 to be reused, got %d", c)
	}
}

func TestNumberPoolExhaustion(t *testing.T) {
	p := NewNumberPool(1, 2)
	p.Allocate()
	p.Allocate()

	if got := p.Allocate(); got != Invalid {
		t.Fatalf("expected Invalid once the pool is exhausted, got %d", got)
	}
}
