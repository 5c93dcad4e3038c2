// Package massstorage implements the Bulk-Only Mass Storage transport
// (CBW/CSW) and the small SCSI Transparent Command Set subset a USB mass
// storage device needs, grounded on
// original_source/lib/usb/usbmassdevice.cpp.
package massstorage

import (
	"encoding/binary"
	"fmt"
)

const (
	cbwSignature = 0x43425355
	cswSignature = 0x53425355

	cbwLength = 31
	cswLength = 13

	cbwFlagsDataIn = 0x80

	cswStatusPassed     = 0x00
	cswStatusFailed     = 0x01
	cswStatusPhaseError = 0x02

	// BlockSize is the fixed 512-byte logical block size this transport
	// assumes, per UMSD_BLOCK_SIZE.
	BlockSize      = 512
	blockSizeShift = 9
)

// Transport performs the two bulk-endpoint transfers a Command needs: one
// on the OUT endpoint (CBW, and OUT data), one on the IN endpoint (IN
// data, and CSW). in is false for OUT, true for IN, matching the two
// endpoints a bulk-only device always has.
type Transport interface {
	Transfer(in bool, buf []byte) (int, error)
	ClearHalt(in bool) error
}

// Device drives the Bulk-Only transport's command/data/status phases for
// one mass storage interface.
type Device struct {
	t   Transport
	tag uint32
}

func NewDevice(t Transport) *Device {
	return &Device{t: t}
}

// encodeCBW packs a Command Block Wrapper, per TCBW.
func encodeCBW(tag uint32, dataLen uint32, in bool, cmd []byte) []byte {
	buf := make([]byte, cbwLength)
	binary.LittleEndian.PutUint32(buf[0:], cbwSignature)
	binary.LittleEndian.PutUint32(buf[4:], tag)
	binary.LittleEndian.PutUint32(buf[8:], dataLen)
	if in {
		buf[12] = cbwFlagsDataIn
	}
	buf[13] = 0 // LUN 0
	buf[14] = byte(len(cmd))
	copy(buf[15:], cmd)
	return buf
}

type csw struct {
	signature uint32
	tag       uint32
	residue   uint32
	status    uint8
}

func decodeCSW(buf []byte) (csw, error) {
	if len(buf) != cswLength {
		return csw{}, fmt.Errorf("massstorage: short CSW (%d bytes)", len(buf))
	}
	return csw{
		signature: binary.LittleEndian.Uint32(buf[0:]),
		tag:       binary.LittleEndian.Uint32(buf[4:]),
		residue:   binary.LittleEndian.Uint32(buf[8:]),
		status:    buf[12],
	}, nil
}

// Command runs one full CBW / data-stage / CSW cycle, per the grounding
// file's Command method: cmd is the 6-16 byte CBWCB, dataBuf is the
// transfer data buffer (nil/empty for no data stage), in selects its
// direction. On a failed CSW transfer it clears the halt on the IN
// endpoint via Transport.ClearHalt and retries the CSW transfer once;
// Command itself does not reset the endpoint's PID toggle.
func (d *Device) Command(cmd []byte, dataBuf []byte, in bool) (int, error) {
	if len(cmd) < 6 || len(cmd) > 16 {
		return 0, fmt.Errorf("massstorage: command block length %d out of range", len(cmd))
	}

	d.tag++
	cbw := encodeCBW(d.tag, uint32(len(dataBuf)), in, cmd)

	if _, err := d.t.Transfer(false, cbw); err != nil {
		return 0, fmt.Errorf("massstorage: CBW transfer failed: %w", err)
	}

	result := 0
	if len(dataBuf) > 0 {
		n, err := d.t.Transfer(in, dataBuf)
		if err != nil {
			return 0, fmt.Errorf("massstorage: data transfer failed: %w", err)
		}
		result = n
	}

	cswBuf := make([]byte, cswLength)
	if _, err := d.t.Transfer(true, cswBuf); err != nil {
		if haltErr := d.t.ClearHalt(true); haltErr != nil {
			return 0, fmt.Errorf("massstorage: CSW transfer failed and cannot clear halt: %w", haltErr)
		}

		if _, err := d.t.Transfer(true, cswBuf); err != nil {
			return 0, fmt.Errorf("massstorage: CSW transfer failed twice: %w", err)
		}
	}

	c, err := decodeCSW(cswBuf)
	if err != nil {
		return 0, err
	}

	if c.signature != cswSignature {
		return 0, fmt.Errorf("massstorage: bad CSW signature %#x", c.signature)
	}
	if c.tag != d.tag {
		return 0, fmt.Errorf("massstorage: CSW tag %#x does not match CBW tag %#x", c.tag, d.tag)
	}
	if c.status != cswStatusPassed {
		return 0, fmt.Errorf("massstorage: command failed, CSW status %#x", c.status)
	}
	if c.residue != 0 {
		return 0, fmt.Errorf("massstorage: non-zero data residue %d", c.residue)
	}

	return result, nil
}
