// Package coherent implements the shared-memory allocator of spec.md §4.1:
// a first-fit allocator over a reserved, cache-coherent window backing
// every object the DMA engine or USB controller reads or writes.
//
// Adapted from dma/region.go and dma/block.go (teacher's first-fit DMA
// allocator), generalized with the `boundary` parameter spec.md requires
// for ring buffers that must not straddle a page, and changed from the
// teacher's panic-on-exhaustion behavior to an explicit error return per
// spec.md §4.1 and §7's resource-exhaustion error kind (the allocator does
// not log the failure itself; the error is returned to the caller) —
// see DESIGN.md for that deliberate deviation.
package coherent

import (
	"container/list"
	"fmt"
	"sync"
)

// Region is a reserved, cache-coherent memory window. Every byte returned
// by Alloc is zeroed and mapped with device-visible write
// semantics (on the real target, normal-non-cacheable or
// shareable-device memory attributes set up once at Init time).
type Region struct {
	mu sync.Mutex

	start uint32
	mem   []byte

	freeBlocks *list.List
	usedBlocks map[uint32]*block
}

// newRegion wires up the free-list over a caller-supplied backing slice.
// mem[0] corresponds to address start.
func newRegion(start uint32, mem []byte) *Region {
	r := &Region{
		start:      start,
		mem:        mem,
		freeBlocks: list.New(),
		usedBlocks: make(map[uint32]*block),
	}

	r.freeBlocks.PushFront(&block{addr: start, size: uint32(len(mem))})

	return r
}

// Start returns the region's base address.
func (r *Region) Start() uint32 { return r.start }

// Size returns the region's total size in bytes.
func (r *Region) Size() int { return len(r.mem) }

// view returns the live byte slice backing [addr, addr+size).
func (r *Region) view(addr uint32, size uint32) []byte {
	off := addr - r.start
	return r.mem[off : off+size]
}

// Alloc reserves size bytes aligned to align (0 means word alignment),
// optionally constrained so the allocation never crosses a multiple of
// boundary (0 disables the constraint). The returned block is zeroed.
func (r *Region) Alloc(size int, align int, boundary int) (addr uint32, err error) {
	if size <= 0 {
		return 0, fmt.Errorf("coherent: invalid size %d", size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.alloc(uint32(size), uint32(align), uint32(boundary))
	if err != nil {
		return 0, err
	}

	view := r.view(b.addr, b.size)
	for i := range view {
		view[i] = 0
	}

	r.usedBlocks[b.addr] = b

	return b.addr, nil
}

// Bytes returns the live view of a previously Alloc'd block. Writes through
// the returned slice are immediately visible to the device (no copy).
func (r *Region) Bytes(addr uint32, size int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.usedBlocks[addr]
	if !ok || uint32(size) > b.size {
		return nil
	}

	return r.view(addr, uint32(size))
}

// Free returns the block at addr to the free list.
func (r *Region) Free(addr uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.free(addr)
}

func (r *Region) free(addr uint32) {
	if addr == 0 {
		return
	}

	b, ok := r.usedBlocks[addr]
	if !ok {
		return
	}

	r.insertFree(b)
	delete(r.usedBlocks, addr)
}

func (r *Region) insertFree(used *block) {
	for e := r.freeBlocks.Front(); e != nil; e = e.Next() {
		b := e.Value.(*block)
		if b.addr > used.addr {
			r.freeBlocks.InsertBefore(used, e)
			r.defrag()
			return
		}
	}

	r.freeBlocks.PushBack(used)
}

func (r *Region) defrag() {
	var prev *block

	for e := r.freeBlocks.Front(); e != nil; e = e.Next() {
		b := e.Value.(*block)

		if prev != nil && prev.addr+prev.size == b.addr {
			prev.size += b.size
			defer r.freeBlocks.Remove(e)
			continue
		}

		prev = b
	}
}

// alloc finds a first-fit free block, splitting off alignment padding and
// any leftover tail. When boundary != 0 and the fit would cross a boundary
// multiple, the fit is moved up to the next boundary multiple inside the
// same block; a block too small for that is skipped.
func (r *Region) alloc(size uint32, align uint32, boundary uint32) (*block, error) {
	if align == 0 {
		align = 4
	}

	for e := r.freeBlocks.Front(); e != nil; e = e.Next() {
		b := e.Value.(*block)

		pad := (-b.addr) & (align - 1)
		need := size + pad

		if b.size < need {
			continue
		}

		allocAddr := b.addr + pad

		if boundary != 0 && allocAddr/boundary != (allocAddr+size-1)/boundary {
			allocAddr = (allocAddr/boundary + 1) * boundary
			allocAddr = (allocAddr + align - 1) &^ (align - 1)
			if allocAddr/boundary != (allocAddr+size-1)/boundary {
				continue
			}
			pad = allocAddr - b.addr
			need = size + pad
			if b.size < need {
				continue
			}
		}

		if tail := b.size - need; tail != 0 {
			r.freeBlocks.InsertAfter(&block{addr: b.addr + need, size: tail}, e)
		}

		if pad != 0 {
			r.freeBlocks.InsertAfter(&block{addr: b.addr, size: pad}, e)
		}

		r.freeBlocks.Remove(e)

		return &block{addr: allocAddr, size: size}, nil
	}

	return nil, fmt.Errorf("coherent: region exhausted (requested %d bytes, align %d, boundary %d)", size, align, boundary)
}
