// Package dma implements the DMA engine of spec.md §4.2: control-block
// construction, channel start/stop/wait, and IRQ-driven completion
// dispatch for both the legacy 32-bit-address DMA controller and the
// 40-bit-extended controller of later SoC revisions.
//
// Grounded on soc/bcm2835/dma.go (register layout, channel pool,
// DMAStatus/DMADebugInfo bitfield accessors) for the hardware surface, and
// on original_source/lib/dmachannel.cpp + lib/dma4channel.cpp for the
// control-block programming and completion algorithms, which the teacher
// package does not implement (it stops at a blocking Copy() helper) --
// SetupMemCopy/SetupIORead/SetupIOWrite/SetupCyclicIOWrite/SetupMemCopy2D
// and the IRQ completion sequence below follow those files step for step.
package dma

import "encoding/binary"

// Transfer information bits, see DMA_TI_* in soc/bcm2835/dma.go.
const (
	tiIntEn      = 1 << 0
	tiTDMode     = 1 << 1
	tiWaitResp   = 1 << 3
	tiDestInc    = 1 << 4
	tiDestWidth  = 1 << 5
	tiDestDREQ   = 1 << 6
	tiSrcInc     = 1 << 8
	tiSrcWidth   = 1 << 9
	tiSrcDREQ    = 1 << 10
	tiBurstShift = 12
	tiPermapShift = 16
)

// TXFRLenMax and TXFRLenMaxLite bound the length field for the legacy
// controller's normal and "Lite" (reduced) DMA engines respectively.
const (
	TXFRLenMax     = 0x3FFFFFFF
	TXFRLenMaxLite = 0xFFFF

	txfrLenYShift = 16
	txfrLenXMask  = 0xFFFF

	strideDestShift = 16
	strideMask      = 0xFFFF
)

// ControlBlockSize is the size in bytes of a legacy (32-bit) DMA control
// block: 8 32-bit words, cache-line aligned per spec.md §3.
const ControlBlockSize = 32

// ControlBlockAlign is the required alignment of a control block.
const ControlBlockAlign = 32

// ControlBlock is the in-memory layout of a legacy DMA control block.
// Encode/Decode convert to/from the coherent memory backing it; code
// never keeps a long-lived copy detached from that memory, since the
// hardware and the CPU must agree on the same bytes.
type ControlBlock struct {
	TransferInfo   uint32
	SourceAddr     uint32
	DestAddr       uint32
	TransferLength uint32
	Stride         uint32
	NextCB         uint32
	// reserved words, always zero
}

// Encode serializes the control block into buf, which must be at least
// ControlBlockSize bytes.
func (cb *ControlBlock) Encode(buf []byte) {
	order := binary.LittleEndian
	order.PutUint32(buf[0:], cb.TransferInfo)
	order.PutUint32(buf[4:], cb.SourceAddr)
	order.PutUint32(buf[8:], cb.DestAddr)
	order.PutUint32(buf[12:], cb.TransferLength)
	order.PutUint32(buf[16:], cb.Stride)
	order.PutUint32(buf[20:], cb.NextCB)
	order.PutUint32(buf[24:], 0)
	order.PutUint32(buf[28:], 0)
}

// DecodeControlBlock reads a control block back out of buf.
func DecodeControlBlock(buf []byte) ControlBlock {
	order := binary.LittleEndian
	return ControlBlock{
		TransferInfo:   order.Uint32(buf[0:]),
		SourceAddr:     order.Uint32(buf[4:]),
		DestAddr:       order.Uint32(buf[8:]),
		TransferLength: order.Uint32(buf[12:]),
		Stride:         order.Uint32(buf[16:]),
		NextCB:         order.Uint32(buf[20:]),
	}
}

// pack2DLength combines a block count and block length into the legacy
// controller's split transfer-length field (y-length/x-length), per
// SetupMemCopy2D in original_source/lib/dmachannel.cpp.
func pack2DLength(blockCount, blockLength int) uint32 {
	return uint32(blockCount-1)<<txfrLenYShift | uint32(blockLength)&txfrLenXMask
}

// packStride packs the destination stride into the 2D-mode stride word.
func packStride(stride int) uint32 {
	return uint32(stride&strideMask) << strideDestShift
}
