package dma

import "encoding/binary"

// ControlBlock40Size is the size in bytes of an extended (40-bit address)
// DMA control block used by the BCM2711 DMA4 controller (channels 11-14),
// per original_source/lib/dma4channel.cpp's TDMA4ControlBlock.
const ControlBlock40Size = 32

// Transfer-information bits and source/destination-information field
// layout of the DMA4 controller, named for their ARM_DMA4CHAN_TI/
// SOURCE_INFO/DEST_INFO counterparts.
const (
	ti40IntEn       = 1 << 0
	ti40TDMode      = 1 << 1
	ti40WaitResp    = 1 << 2
	ti40WaitRdResp  = 1 << 3
	ti40SrcDREQ     = 1 << 14
	ti40DestDREQ    = 1 << 15
	ti40PermapShift = 9

	info40Size128       = 2 << 13
	info40Size32        = 0 << 13
	info40Inc           = 1 << 12
	info40BurstShift    = 8
	info40StrideShift   = 16
	info40AddrHighShift = 0

	// full35AddrOffset is the high-order nibble a DMA4 channel must carry
	// in a peripheral address's info word: ordinary RAM already spans the
	// low 34 bits of the 35-bit DMA4 bus address space on BCM2711, so a
	// peripheral (I/O) address is only reachable by setting this offset,
	// per FULL35_ADDR_OFFSET in the grounding file.
	full35AddrOffset = 4

	len40YShift = 16
)

// ControlBlock40 is the in-memory layout of a DMA4 control block: 32-bit
// low addresses with the remaining high bits folded into the per-side
// info word, per TDMA4ControlBlock.
type ControlBlock40 struct {
	TransferInfo     uint32
	SourceAddr       uint32
	SourceInfo       uint32
	DestAddr         uint32
	DestInfo         uint32
	TransferLength   uint32
	NextControlBlock uint32
}

// Encode serializes the control block into buf, which must be at least
// ControlBlock40Size bytes. The eighth word is always zero (reserved),
// mirroring TDMA4ControlBlock::nReserved.
func (cb *ControlBlock40) Encode(buf []byte) {
	order := binary.LittleEndian
	order.PutUint32(buf[0:], cb.TransferInfo)
	order.PutUint32(buf[4:], cb.SourceAddr)
	order.PutUint32(buf[8:], cb.SourceInfo)
	order.PutUint32(buf[12:], cb.DestAddr)
	order.PutUint32(buf[16:], cb.DestInfo)
	order.PutUint32(buf[20:], cb.TransferLength)
	order.PutUint32(buf[24:], cb.NextControlBlock)
	order.PutUint32(buf[28:], 0)
}

// DecodeControlBlock40 reads a DMA4 control block back out of buf.
func DecodeControlBlock40(buf []byte) ControlBlock40 {
	order := binary.LittleEndian
	return ControlBlock40{
		TransferInfo:     order.Uint32(buf[0:]),
		SourceAddr:       order.Uint32(buf[4:]),
		SourceInfo:       order.Uint32(buf[8:]),
		DestAddr:         order.Uint32(buf[12:]),
		DestInfo:         order.Uint32(buf[16:]),
		TransferLength:   order.Uint32(buf[20:]),
		NextControlBlock: order.Uint32(buf[24:]),
	}
}

// sideInfo40 builds a DMA4 source/destination-information word: 128-bit
// burst width, optional address increment, and burst length, per
// SetupMemCopy's *_INFORMATION assignments. A memory-side address's high
// bits are always 0 here: control-block buffers never leave the low
// 4GB of this module's coherent region.
func sideInfo40(inc bool, burstLength int) uint32 {
	info := uint32(info40Size128) | uint32(burstLength&0xF)<<info40BurstShift
	if inc {
		info |= info40Inc
	}
	return info
}

// ioSideInfo40 is the DMA4 info word for the DREQ-gated peripheral side
// of an I/O transfer: 32-bit width, no increment, default burst length,
// and full35AddrOffset's high bits so the controller's 35-bit bus
// address reaches the peripheral alias rather than RAM, per
// SetupIORead/SetupIOWrite.
func ioSideInfo40() uint32 {
	return uint32(info40Size32) | full35AddrOffset<<info40AddrHighShift
}

// pack2DLength40 combines a block count and block length into the DMA4
// controller's split transfer-length field, per SetupMemCopy2D.
func pack2DLength40(blockCount, blockLength int) uint32 {
	return uint32(blockCount-1)<<len40YShift | uint32(blockLength)
}

// strideInfo40 ORs a destination stride into an already-built
// destination-information word, per SetupMemCopy2D's DEST4_STRIDE_SHIFT.
func strideInfo40(info uint32, stride int) uint32 {
	return info | uint32(stride&0xFFFF)<<info40StrideShift
}
