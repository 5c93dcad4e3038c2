// Package dwhci implements the legacy host controller's split-transfer
// engine: per-channel transfer bookkeeping (stage data) and the status
// interrupt bits it's built from, grounded on
// original_source/lib/usb/dwhcixferstagedata.cpp. The frame schedulers
// that object delegates to (CDWHCIFrameSchedulerPeriodic and friends)
// are referenced but not present in the retrieved source; FrameScheduler
// below is the minimal interface the stage data needs from them.
package dwhci

import (
	"github.com/bcm2835go/bcm2835go/usb"
	"github.com/bcm2835go/bcm2835go/usb/usberr"
)

// Host channel interrupt status bits, per DWHCI_HOST_CHAN_INT_* in
// original_source/include/circle/usb/dwhcidevice.h (inferred from usage
// in dwhcixferstagedata.cpp; definitions themselves are not in the
// retrieved source).
const (
	IntXferComplete    = 1 << 0
	IntHalted          = 1 << 1
	IntAHBError        = 1 << 2
	IntStall           = 1 << 3
	IntNAK             = 1 << 4
	IntACK             = 1 << 5
	IntNYET            = 1 << 6
	IntXactError       = 1 << 7
	IntBabbleError     = 1 << 8
	IntFrameOverrun    = 1 << 9
	IntDataToggleError = 1 << 10

	IntErrorMask = IntAHBError | IntStall | IntXactError | IntBabbleError |
		IntFrameOverrun | IntDataToggleError
)

const maxBulkTries = 8
const maxIsoSplitPayload = 188

// SplitPosition is the DWHCI_HOST_CHAN_SPLIT_CTRL_* value carried in the
// split-control field of a start-split transaction.
type SplitPosition int

const (
	SplitAll SplitPosition = iota
	SplitBegin
	SplitMid
	SplitEnd
)

// FrameScheduler decides when a periodic or split transaction may be
// issued; its concrete implementations (periodic/non-periodic/isochronous/
// no-split) live outside this package's grounding source.
type FrameScheduler interface {
	StartFrame() error
	FinishFrame() error
	IsOddFrame() bool
}

// TransferStageData tracks one USB host channel's progress through a
// (possibly multi-transaction, possibly split) transfer, per
// CDWHCITransferStageData.
type TransferStageData struct {
	Channel int

	urb         *usb.URB
	endpoint    *usb.Endpoint
	device      *usb.Device
	speed       usb.Speed
	in          bool
	statusStage bool

	maxPacketSize uint32

	bufferOffset int
	transferSize int

	packets              uint32
	bytesPerTransaction  int
	packetsPerTransaction uint32
	isoPackets           int

	splitTransaction bool
	splitComplete    bool
	scheduler        FrameScheduler

	state, subState int

	transactionStatus uint32
	errorCount        int

	totalBytesTransferred int

	timeoutTicks uint64 // 0 = no timeout
	startTicks   uint64
}

// NewTransferStageData builds the stage data for one URB on channel,
// mirroring the constructor's data-stage-size and per-transaction-size
// computation for both split and non-split transfers.
func NewTransferStageData(channel int, u *usb.URB, in, statusStage bool) *TransferStageData {
	ep := u.Endpoint
	dev := ep.Device()

	d := &TransferStageData{
		Channel:          channel,
		urb:              u,
		endpoint:         ep,
		device:           dev,
		speed:            dev.Speed,
		in:               in,
		statusStage:      statusStage,
		maxPacketSize:    ep.MaxPacketSize(),
		splitTransaction: dev.SplitTransfer,
	}

	if !statusStage {
		if ep.GetNextPID(false) == usb.PIDSetup {
			d.transferSize = 8 // sizeof(TSetupData)
		} else {
			d.transferSize = len(u.Buffer)
		}

		d.packets = uint32((d.transferSize + int(d.maxPacketSize) - 1) / int(d.maxPacketSize))

		if d.splitTransaction {
			switch {
			case d.isIsochronous() && !in && d.transferSize > maxIsoSplitPayload:
				d.bytesPerTransaction = maxIsoSplitPayload
				d.packets = uint32((d.transferSize + maxIsoSplitPayload - 1) / maxIsoSplitPayload)
			case d.isIsochronous():
				d.bytesPerTransaction = d.transferSize
			case d.transferSize > int(d.maxPacketSize):
				d.bytesPerTransaction = int(d.maxPacketSize)
			default:
				d.bytesPerTransaction = d.transferSize
			}
			d.packetsPerTransaction = 1
		} else {
			if d.isIsochronous() && len(u.PacketSizes) > 0 {
				d.transferSize = u.PacketSizes[0]
				d.packets = uint32((d.transferSize + int(d.maxPacketSize) - 1) / int(d.maxPacketSize))
			}
			d.bytesPerTransaction = d.transferSize
			d.packetsPerTransaction = d.packets
		}
	} else {
		d.packets = 1
		d.packetsPerTransaction = 1
	}

	return d
}

func (d *TransferStageData) isIsochronous() bool {
	return d.endpoint.Type() == usb.TypeIsochronous
}

func (d *TransferStageData) IsPeriodic() bool {
	t := d.endpoint.Type()
	return t == usb.TypeInterrupt || t == usb.TypeIsochronous
}

// TransactionComplete folds one transaction's hardware completion status
// into the stage data, advancing the endpoint's PID toggle and the
// remaining-packet/byte counters, per the grounding file's method of the
// same name. status carries the raw channel interrupt bits; packetsLeft
// and bytesLeft are the hardware's reported remainder.
func (d *TransferStageData) TransactionComplete(status uint32, packetsLeft, bytesLeft uint32) {
	d.transactionStatus = status

	if status&(IntErrorMask|IntNAK|IntNYET) != 0 {
		if status&IntNAK != 0 && d.urb.CompleteOnNAK {
			d.packets = 0
			return
		}

		if status&IntXactError == 0 || d.endpoint.Type() != usb.TypeBulk {
			return
		}
		d.errorCount++
		if d.errorCount > maxBulkTries {
			return
		}
	}

	packetsTransferred := d.packetsPerTransaction - packetsLeft
	bytesTransferred := d.bytesPerTransaction - int(bytesLeft)

	if bytesTransferred == 0 && d.bytesPerTransaction > 0 {
		switch {
		case d.splitTransaction && d.splitComplete:
			bytesTransferred = int(d.maxPacketSize) * int(packetsTransferred)
		case d.isIsochronous():
			bytesTransferred = d.bytesPerTransaction * int(packetsTransferred)
		}
	}

	d.totalBytesTransferred += bytesTransferred
	d.bufferOffset += bytesTransferred

	if !d.splitTransaction || d.splitComplete {
		d.endpoint.SkipPID(packetsTransferred, d.statusStage)
	}

	if packetsTransferred > d.packets {
		d.transactionStatus |= IntFrameOverrun
		d.errorCount = maxBulkTries + 1
		d.packets = 0
		return
	}

	d.packets -= packetsTransferred

	if !d.splitTransaction {
		if !d.isIsochronous() {
			d.packetsPerTransaction = d.packets
		} else {
			d.isoPackets++
			if d.isoPackets < d.urb.NumIsoPackets() {
				d.transferSize = d.urb.IsoPacketSize(d.isoPackets)
				d.packets = uint32((d.transferSize + int(d.maxPacketSize) - 1) / int(d.maxPacketSize))
				d.bytesPerTransaction = d.transferSize
				d.packetsPerTransaction = d.packets
			}
			return
		}
	}

	if d.transferSize-d.totalBytesTransferred < d.bytesPerTransaction {
		d.bytesPerTransaction = d.transferSize - d.totalBytesTransferred
	}
}

func (d *TransferStageData) SetSplitComplete(complete bool) { d.splitComplete = complete }
func (d *TransferStageData) IsSplitComplete() bool          { return d.splitComplete }
func (d *TransferStageData) IsSplit() bool                  { return d.splitTransaction }

func (d *TransferStageData) SetState(s int)    { d.state = s }
func (d *TransferStageData) State() int        { return d.state }
func (d *TransferStageData) SetSubState(s int) { d.subState = s }
func (d *TransferStageData) SubState() int     { return d.subState }

func (d *TransferStageData) BytesToTransfer() int      { return d.bytesPerTransaction }
func (d *TransferStageData) PacketsToTransfer() uint32 { return d.packetsPerTransaction }

// BufferOffset returns the byte offset into the URB's buffer where the
// next (or most recently completed) transaction begins.
func (d *TransferStageData) BufferOffset() int { return d.bufferOffset }

// In reports the transfer direction passed to NewTransferStageData.
func (d *TransferStageData) In() bool { return d.in }

// IsStageComplete reports whether every packet of this stage has been
// transferred.
func (d *TransferStageData) IsStageComplete() bool { return d.packets == 0 }

// ResultLen returns the number of bytes actually transferred, capped at
// the requested transfer size.
func (d *TransferStageData) ResultLen() int {
	if d.totalBytesTransferred > d.transferSize {
		return d.transferSize
	}
	return d.totalBytesTransferred
}

func (d *TransferStageData) IsRetryOK() bool { return d.errorCount <= maxBulkTries }

// SplitPositionFor returns the split-control field for the next
// start-split transaction of an isochronous OUT transfer spanning more
// than one 188-byte microframe payload; all other transfers use SplitAll.
func (d *TransferStageData) SplitPositionFor() SplitPosition {
	if d.splitTransaction && d.isIsochronous() && d.transferSize > maxIsoSplitPayload {
		if d.totalBytesTransferred == 0 {
			return SplitBegin
		}
		if d.packets > 1 {
			return SplitMid
		}
		return SplitEnd
	}
	return SplitAll
}

// StatusMask returns the set of interrupt bits the channel should be
// armed to report for this transfer.
func (d *TransferStageData) StatusMask() uint32 {
	mask := uint32(IntXferComplete | IntHalted | IntErrorMask)
	if d.splitTransaction || d.IsPeriodic() {
		mask |= IntACK | IntNAK | IntNYET
	}
	return mask
}

// USBError classifies the most recent transaction status into a
// usberr.Error, per GetUSBError's bit-priority order.
func (d *TransferStageData) USBError() usberr.Error {
	switch {
	case d.transactionStatus&IntStall != 0:
		return usberr.Stall
	case d.transactionStatus&IntXactError != 0:
		return usberr.XactError
	case d.transactionStatus&IntBabbleError != 0:
		return usberr.Babble
	case d.transactionStatus&IntFrameOverrun != 0:
		return usberr.FrameOverrun
	case d.transactionStatus&IntDataToggleError != 0:
		return usberr.DataToggle
	default:
		return usberr.AHBError
	}
}

// SetTimeout arms an explicit millisecond deadline (interrupt transfers
// only), storing the starting tick count in HZ units.
func (d *TransferStageData) SetTimeout(timeoutTicks, nowTicks uint64) {
	d.timeoutTicks = timeoutTicks
	d.startTicks = nowTicks
}

// IsTimeout reports whether an armed deadline has elapsed as of nowTicks.
func (d *TransferStageData) IsTimeout(nowTicks uint64) bool {
	if d.timeoutTicks == 0 {
		return false
	}
	return nowTicks-d.startTicks >= d.timeoutTicks
}

func (d *TransferStageData) URB() *usb.URB       { return d.urb }
func (d *TransferStageData) Device() *usb.Device { return d.device }
func (d *TransferStageData) SetFrameScheduler(s FrameScheduler) { d.scheduler = s }
func (d *TransferStageData) Scheduler() FrameScheduler          { return d.scheduler }
