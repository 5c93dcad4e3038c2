package usb

// Type classifies a USB endpoint's transfer type.
type Type int

const (
	TypeControl Type = iota
	TypeBulk
	TypeInterrupt
	TypeIsochronous
)

// Direction is the endpoint's data direction (meaningless for Control,
// which is bidirectional).
type Direction int

const (
	DirectionOut Direction = iota
	DirectionIn
)

// PID is the USB packet identifier carried on the next transaction of an
// endpoint, per spec.md glossary's "PID" entry.
type PID int

const (
	PIDSetup PID = iota
	PIDData0
	PIDData1
)

// Endpoint is one endpoint of a Device, per spec.md §4.3 ("USB endpoint").
// Endpoint zero is created by NewEndpoint0 from NewRootDevice and
// NewChildDevice; others are discovered
// from the active configuration's interface descriptors during
// enumeration.
type Endpoint struct {
	device *Device

	number    uint8
	direction Direction
	typ       Type

	maxPacketSize uint32
	interval      uint32 // polling interval, in frames/microframes

	nextPID PID

	ring interface{} // *xhci.Ring on xHCI controllers; nil on dwhci
}

// NewEndpoint0 constructs the control endpoint every Device owns,
// defaulting to the USB spec's 8-byte default max packet size until
// Initialize negotiates the real value from the device descriptor.
func NewEndpoint0(dev *Device) *Endpoint {
	return &Endpoint{
		device:        dev,
		number:        0,
		typ:           TypeControl,
		maxPacketSize: 8,
		nextPID:       PIDSetup,
	}
}

// NewEndpoint constructs a non-zero endpoint from a parsed descriptor's
// fields (address low nibble, direction bit 7, transfer type, wMaxPacketSize
// and bInterval already resolved to this speed's polling unit).
func NewEndpoint(dev *Device, number uint8, dir Direction, typ Type, maxPacketSize, interval uint32) *Endpoint {
	pid := PIDData0
	if typ == TypeControl {
		pid = PIDSetup
	}

	return &Endpoint{
		device:        dev,
		number:        number,
		direction:     dir,
		typ:           typ,
		maxPacketSize: maxPacketSize,
		interval:      interval,
		nextPID:       pid,
	}
}

func (e *Endpoint) Device() *Device          { return e.device }
func (e *Endpoint) Number() uint8            { return e.number }
func (e *Endpoint) Direction() Direction     { return e.direction }
func (e *Endpoint) Type() Type               { return e.typ }
func (e *Endpoint) MaxPacketSize() uint32    { return e.maxPacketSize }
func (e *Endpoint) Interval() uint32         { return e.interval }
func (e *Endpoint) Ring() interface{}        { return e.ring }
func (e *Endpoint) SetRing(ring interface{}) { e.ring = ring }

// SetMaxPacketSize updates ep0's negotiated packet size once the device
// descriptor's bMaxPacketSize0 is known. maxPacketSize must be one of the
// values legal for the endpoint's reported speed (8/16/32/64).
func (e *Endpoint) SetMaxPacketSize(maxPacketSize uint32) bool {
	switch maxPacketSize {
	case 8, 16, 32, 64:
		e.maxPacketSize = maxPacketSize
		return true
	default:
		return false
	}
}

// GetNextPID returns the PID the next transaction should use. For a
// control transfer's status stage the PID is always DATA1 regardless of
// toggle state, per USB 2.0 §8.5.3.
func (e *Endpoint) GetNextPID(statusStage bool) PID {
	if statusStage {
		return PIDData1
	}
	return e.nextPID
}

// SkipPID advances the endpoint's DATA0/DATA1 toggle by nPackets
// transactions (an odd count flips it, an even count leaves it
// unchanged), per dwhcixferstagedata.cpp's TransactionComplete call into
// CUSBEndpoint::SkipPID. statusStage transactions never touch the toggle.
func (e *Endpoint) SkipPID(nPackets uint32, statusStage bool) {
	if statusStage {
		return
	}

	if e.nextPID == PIDSetup {
		e.nextPID = PIDData1
		return
	}

	if nPackets%2 == 1 {
		if e.nextPID == PIDData0 {
			e.nextPID = PIDData1
		} else {
			e.nextPID = PIDData0
		}
	}
}

// ResetPID resets the endpoint's toggle to DATA0 (or SETUP for control),
// per a CLEAR_FEATURE(ENDPOINT_HALT) or a new control transfer.
func (e *Endpoint) ResetPID() {
	if e.typ == TypeControl {
		e.nextPID = PIDSetup
	} else {
		e.nextPID = PIDData0
	}
}

// IntervalFromBInterval converts a descriptor's bInterval field into a
// number of (micro)frames, per the speed-specific rules in USB 2.0 §9.6.6
// and USB 3.x's uniform log2 encoding for High/Super speed.
func IntervalFromBInterval(speed Speed, typ Type, bInterval uint8) uint32 {
	switch speed {
	case SpeedLow, SpeedFull:
		if typ == TypeIsochronous {
			// Full/low speed isochronous bInterval is already a power of
			// two frame count (1,2,4,...,32).
			return uint32(bInterval)
		}
		return uint32(bInterval) // interrupt: 1-255 frames, used as-is
	default: // High, Super: 2^(bInterval-1) microframes
		if bInterval == 0 {
			bInterval = 1
		}
		return 1 << (bInterval - 1)
	}
}
