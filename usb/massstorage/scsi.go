package massstorage

import (
	"encoding/binary"
	"fmt"
)

// SCSI Transparent Command Set operation codes used by the bulk-only
// transport, per usbmassdevice.cpp.
const (
	opInquiry       = 0x12
	opTestUnitReady = 0x00
	opRequestSense  = 0x03
	opReadCapacity10 = 0x25
	opRead10        = 0x28
	opWrite10       = 0x2A

	pdtDirectAccessBlock = 0x00
	pdtDirectAccessRBC   = 0x0E

	scsiWriteFUA = 0x08
)

// BlockDevice drives Read10/Write10/ReadCapacity10 over a mass storage
// Device, mirroring CUSBBulkOnlyMassStorageDevice's public block I/O
// surface (Read/Write/Seek/GetSize).
type BlockDevice struct {
	dev        *Device
	blockCount uint32
}

// Open issues Inquiry, polls Test-Unit-Ready (sending Request-Sense
// between tries) until the unit is ready, and reads the device capacity,
// per CUSBBulkOnlyMassStorageDevice::Configure.
func Open(dev *Device, readyRetries int) (*BlockDevice, error) {
	inquiry := []byte{opInquiry, 0, 0, 0, 36, 0}
	resp := make([]byte, 36)
	if _, err := dev.Command(inquiry, resp, true); err != nil {
		return nil, fmt.Errorf("massstorage: inquiry: %w", err)
	}

	pdt := resp[0] & 0x1F
	if pdt != pdtDirectAccessBlock && pdt != pdtDirectAccessRBC {
		return nil, fmt.Errorf("massstorage: unsupported device type %#x", pdt)
	}

	var lastErr error
	ready := false
	for try := 0; try < readyRetries; try++ {
		testReady := []byte{opTestUnitReady, 0, 0, 0, 0, 0}
		if _, err := dev.Command(testReady, nil, false); err == nil {
			ready = true
			break
		}

		sense := []byte{opRequestSense, 0, 0, 0, 18, 0}
		senseResp := make([]byte, 18)
		if _, err := dev.Command(sense, senseResp, true); err != nil {
			lastErr = err
		}
	}
	if !ready {
		if lastErr != nil {
			return nil, fmt.Errorf("massstorage: unit never became ready: %w", lastErr)
		}
		return nil, fmt.Errorf("massstorage: unit never became ready")
	}

	capacity := []byte{opReadCapacity10, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	capResp := make([]byte, 8)
	if _, err := dev.Command(capacity, capResp, true); err != nil {
		return nil, fmt.Errorf("massstorage: read capacity: %w", err)
	}

	lastLBA := binary.BigEndian.Uint32(capResp[0:4])

	return &BlockDevice{dev: dev, blockCount: lastLBA + 1}, nil
}

func (b *BlockDevice) BlockCount() uint32 { return b.blockCount }
func (b *BlockDevice) Size() uint64       { return uint64(b.blockCount) * BlockSize }

// Read10 reads nCount bytes (a multiple of BlockSize) starting at byte
// offset into buf, per TryRead.
func (b *BlockDevice) Read10(offset uint64, buf []byte) error {
	if offset%BlockSize != 0 || len(buf)%BlockSize != 0 {
		return fmt.Errorf("massstorage: offset and length must be multiples of %d bytes", BlockSize)
	}

	lba := uint32(offset / BlockSize)
	transferLen := uint16(len(buf) / BlockSize)

	cmd := make([]byte, 10)
	cmd[0] = opRead10
	binary.BigEndian.PutUint32(cmd[2:], lba)
	binary.BigEndian.PutUint16(cmd[7:], transferLen)

	_, err := b.dev.Command(cmd, buf, true)
	return err
}

// Write10 writes buf (a multiple of BlockSize) to offset, per TryWrite,
// with the Force Unit Access bit set so data is committed before the
// command completes.
func (b *BlockDevice) Write10(offset uint64, buf []byte) error {
	if offset%BlockSize != 0 || len(buf)%BlockSize != 0 {
		return fmt.Errorf("massstorage: offset and length must be multiples of %d bytes", BlockSize)
	}

	lba := uint32(offset / BlockSize)
	transferLen := uint16(len(buf) / BlockSize)

	cmd := make([]byte, 10)
	cmd[0] = opWrite10
	cmd[1] = scsiWriteFUA
	binary.BigEndian.PutUint32(cmd[2:], lba)
	binary.BigEndian.PutUint16(cmd[7:], transferLen)

	_, err := b.dev.Command(cmd, buf, false)
	return err
}
