package dma

import "testing"

func TestPoolAllocFreeReuse(t *testing.T) {
	p := NewPool(0xFFFF, 1<<14, 0)

	ch, err := p.Alloc(ClassNormal, -1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if p.IsLite(ch) {
		t.Fatalf("channel %d unexpectedly classified Lite", ch)
	}

	p.Free(ch)

	ch2, err := p.Alloc(ClassNormal, -1)
	if err != nil {
		t.Fatalf("Alloc after Free: %v", err)
	}

	if ch != ch2 {
		t.Fatalf("expected first-fit reuse of freed channel %d, got %d", ch, ch2)
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool(0b11, 0, 0)

	if _, err := p.Alloc(ClassNormal, -1); err != nil {
		t.Fatalf("Alloc 1: %v", err)
	}
	if _, err := p.Alloc(ClassNormal, -1); err != nil {
		t.Fatalf("Alloc 2: %v", err)
	}
	if _, err := p.Alloc(ClassNormal, -1); err == nil {
		t.Fatal("expected exhaustion error")
	}
}

func TestPoolExplicitChannelUnavailable(t *testing.T) {
	p := NewPool(0b0001, 0, 0)

	if _, err := p.Alloc(ClassNormal, 5); err == nil {
		t.Fatal("expected error allocating unavailable explicit channel")
	}
}

func TestPoolExplicitChannelDoubleAlloc(t *testing.T) {
	p := NewPool(0xFFFF, 0, 0)

	if _, err := p.Alloc(ClassNormal, 3); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if _, err := p.Alloc(ClassNormal, 3); err == nil {
		t.Fatal("expected error double-allocating channel 3")
	}
}

func TestPoolClassMasksAreDisjoint(t *testing.T) {
	p := NewPool(0xFFFF, 1<<7, 1<<8)

	lite, err := p.Alloc(ClassLite, -1)
	if err != nil {
		t.Fatalf("Alloc lite: %v", err)
	}
	if lite != 7 {
		t.Fatalf("expected Lite channel 7, got %d", lite)
	}

	ext, err := p.Alloc(ClassExtended, -1)
	if err != nil {
		t.Fatalf("Alloc extended: %v", err)
	}
	if ext != 8 {
		t.Fatalf("expected Extended channel 8, got %d", ext)
	}
}
