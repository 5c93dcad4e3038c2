package config

import "testing"

func TestBoardDefaultsToPi3(t *testing.T) {
	b := Board()
	if b.Name != "pi3" {
		t.Fatalf("Name = %q, want %q (default build, no board_pi0/board_pi4 tag)", b.Name, "pi3")
	}
	if b.PeripheralBase != 0x3f000000 {
		t.Fatalf("PeripheralBase = %#x, want %#x", b.PeripheralBase, 0x3f000000)
	}
}

func TestHeapBlockBucketSizesAscendingMultiplesOf64(t *testing.T) {
	if len(HeapBlockBucketSizes) == 0 || len(HeapBlockBucketSizes) > 20 {
		t.Fatalf("got %d bucket sizes, want 1..20", len(HeapBlockBucketSizes))
	}

	prev := uint32(0)
	for _, size := range HeapBlockBucketSizes {
		if size%64 != 0 {
			t.Fatalf("bucket size %d is not a multiple of 64", size)
		}
		if size <= prev {
			t.Fatalf("bucket sizes not strictly ascending: %d after %d", size, prev)
		}
		prev = size
	}
}

func TestScreenDMABurstLengthInRange(t *testing.T) {
	if ScreenDMABurstLength < 0 || ScreenDMABurstLength > 15 {
		t.Fatalf("ScreenDMABurstLength = %d, want 0..15", ScreenDMABurstLength)
	}
}
