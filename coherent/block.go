package coherent

// block is a single allocation record: either free (on Region.freeBlocks)
// or in use (keyed in Region.usedBlocks by address). Adapted from
// dma/block.go's unsafe.Add/unsafe.Slice accessors.
type block struct {
	addr uint32
	size uint32
	// reserved mirrors dma.Region's res flag. Region offers only
	// Alloc/Free (no Reserve/Release), so nothing in this package sets it.
	reserved bool
}
