// Package config holds the compile-time constants that would otherwise be
// pre-processor switches in the original firmware's linker/boot interface
// (spec.md §6): kernel link address and size cap, heap layout, task
// scheduling limits, and the per-board peripheral base address. TamaGo
// links firmware as a single Go binary with no flag parser, so these are
// plain `const` groups selected by build tag, following soc/bcm2835.go's
// own use of a per-board `PeripheralBase` constant.
package config

// HeapStrategy selects where newly allocated heap blocks are drawn from,
// matching spec.md §6's HEAP_DEFAULT_NEW in {low, high, any}.
type HeapStrategy int

const (
	HeapLow HeapStrategy = iota
	HeapHigh
	HeapAny
)

const (
	// KernelBase is the link address firmware is built to run at.
	KernelBase = 0x8000
	// KernelMaxSize caps the linked image size.
	KernelMaxSize = 2 * 1024 * 1024
	// MainStackSize is the size of the boot stack reserved below KernelBase.
	MainStackSize = 128 * 1024

	// HeapDefaultNew selects the default allocation strategy for new heap
	// blocks.
	HeapDefaultNew = HeapLow

	// MaxTasks bounds the number of cooperative scheduler tasks.
	MaxTasks = 32
	// TaskStackSize is the per-task stack allocation.
	TaskStackSize = 64 * 1024

	// ScreenDMABurstLength bounds the number of words drained from the
	// frame buffer per DMA burst on the display path (0..15).
	ScreenDMABurstLength = 8
)

// HeapBlockBucketSizes are the ascending block-size buckets a fixed-size
// heap allocator carves memory into, each a multiple of 64 bytes, per
// spec.md §6's HEAP_BLOCK_BUCKET_SIZES (up to 20 entries).
var HeapBlockBucketSizes = []uint32{
	64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768, 65536, 131072,
}

// BoardConfig is the per-board configuration assembled in main, bundling
// the build-tag-selected PeripheralBase with the board-independent
// constants above.
type BoardConfig struct {
	Name           string
	PeripheralBase uint32
	SysTimerFreq   uint64
}

// Board returns the configuration for the board selected by build tag.
func Board() BoardConfig {
	return BoardConfig{
		Name:           boardName,
		PeripheralBase: peripheralBase,
		SysTimerFreq:   sysTimerFreq,
	}
}
