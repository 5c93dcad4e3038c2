package dwhci

import (
	"fmt"

	"github.com/bcm2835go/bcm2835go/cache"
	"github.com/bcm2835go/bcm2835go/coherent"
	"github.com/bcm2835go/bcm2835go/irq"
	"github.com/bcm2835go/bcm2835go/logging"
	"github.com/bcm2835go/bcm2835go/mmio"
	"github.com/bcm2835go/bcm2835go/usb"
	"github.com/bcm2835go/bcm2835go/usb/usberr"
)

// Per-channel register layout. original_source/lib/usb/dwhcidevice.cpp,
// the file TransferStageData's own channel/status bookkeeping would
// normally pair with, is not present in the retrieved tree; this
// package's own layout below carries exactly the fields
// TransferStageData.TransactionComplete's signature needs -- status bits
// (shared with IntXferComplete and friends above), remaining packet
// count, remaining byte count -- rather than guess at an unretrieved
// register map.
const (
	chanSpan = 0x20

	regHCChar   = 0x00
	regHCSplt   = 0x04
	regHCInt    = 0x08
	regHCIntMsk = 0x0C
	regHCTSiz   = 0x10
	regHCDMA    = 0x14

	hcCharEnable      = 1 << 31
	hcCharEPDirIn     = 1 << 15
	hcCharEPNumShift  = 11
	hcCharEPTypeShift = 18
	hcCharDevAddrShift = 22
	hcCharMPSMask     = 0x7FF

	hcSpltEnable       = 1 << 31
	hcSpltComplete     = 1 << 16
	hcSpltPosShift     = 14
	hcSpltHubAddrShift = 7
	hcSpltPortMask     = 0x7F

	hcTSizPacketsShift = 19
	hcTSizPacketsMask  = 0x3FF
	hcTSizBytesMask    = 0x7FFFF

	maxTransactionBytes = 4096
)

// MaxChannels bounds the host channel pool, per XHCI_CONFIG_MAX_SLOTS-
// style fixed sizing elsewhere in this module; the real DWHCI host
// implements 8 channels on the BCM283x/BCM2711 families this module
// targets.
const MaxChannels = 8

// Controller drives TransferStageData against a host channel register set
// on a real (or fake) mmio.Bus, the top-level piece connecting that
// state machine to actual hardware: it allocates a free channel,
// programs its characteristics/split-control/size/DMA-pointer registers
// from the stage data, starts the channel, and on that channel's
// interrupt line feeds the reported status and remaining packet/byte
// counts back into TransactionComplete, looping until the stage reports
// the transfer stage complete.
type Controller struct {
	bus    mmio.Bus
	cache  cache.Maintainer
	region *coherent.Region
	irqc   *irq.Controller
	log    *logging.Logger

	base    uint32
	irqBase int

	chans [MaxChannels]bool // true while allocated
}

// Config bundles a Controller's register addresses and shared resources.
type Config struct {
	Bus     mmio.Bus
	Cache   cache.Maintainer
	Region  *coherent.Region
	IRQ     *irq.Controller
	Log     *logging.Logger
	Base    uint32
	IRQBase int // IRQ line for channel 0; channel n uses IRQBase+n
}

// NewController constructs a Controller from cfg.
func NewController(cfg Config) *Controller {
	l := cfg.Log
	if l == nil {
		l = logging.Discard
	}
	return &Controller{
		bus:     cfg.Bus,
		cache:   cfg.Cache,
		region:  cfg.Region,
		irqc:    cfg.IRQ,
		log:     l,
		base:    cfg.Base,
		irqBase: cfg.IRQBase,
	}
}

func (c *Controller) allocChannel() (int, error) {
	for n := 0; n < MaxChannels; n++ {
		if !c.chans[n] {
			c.chans[n] = true
			return n, nil
		}
	}
	return 0, fmt.Errorf("dwhci: no free host channel")
}

func (c *Controller) freeChannel(n int) { c.chans[n] = false }

// Transfer submits u synchronously on a freshly allocated channel: it
// builds stage data via NewTransferStageData, then repeatedly programs
// and starts one transaction at a time -- copying outbound data into
// (or completed data out of) a coherent scratch buffer around each
// transaction -- until the stage reports complete or an unretryable
// error, calling u.Complete with the outcome either way.
func (c *Controller) Transfer(u *usb.URB, in, statusStage bool) error {
	n, err := c.allocChannel()
	if err != nil {
		return err
	}
	defer c.freeChannel(n)

	base := c.base + uint32(n)*chanSpan
	stage := NewTransferStageData(n, u, in, statusStage)

	bufAddr, err := c.region.Alloc(maxTransactionBytes, 4, 0)
	if err != nil {
		return fmt.Errorf("dwhci: allocating channel %d buffer: %w", n, err)
	}
	defer c.region.Free(bufAddr)

	done := make(chan uint32, 1)
	if err := c.irqc.Register(c.irqBase+n, func() {
		c.handleChannelIRQ(base, stage, done)
	}); err != nil {
		return fmt.Errorf("dwhci: registering channel %d IRQ: %w", n, err)
	}
	defer c.irqc.Unregister(c.irqBase + n)

	ep := u.Endpoint

	for !stage.IsStageComplete() {
		offset := stage.BufferOffset()
		size := stage.BytesToTransfer()

		if !stage.In() && size > 0 {
			copy(c.region.Bytes(bufAddr, size), u.Buffer[offset:offset+size])
			c.cache.CleanAndInvalidate(bufAddr, size)
		}

		c.armChannel(base, stage, bufAddr, size)

		status := <-done

		// A bulk transaction error retries in place (TransactionComplete
		// left packets/bytesPerTransaction unchanged for this case) up
		// to maxBulkTries; every other IntErrorMask bit is terminal
		// immediately, per GetUSBError's own bit-priority classification
		// having no "retry" outcome for those kinds.
		bulkRetry := status&IntXactError != 0 && ep.Type() == usb.TypeBulk && stage.IsRetryOK()
		if status&IntErrorMask != 0 && !bulkRetry {
			c.log.Warn("dwhci", "channel %d transfer failed: %v", n, stage.USBError())
			u.Complete(false, stage.ResultLen(), stage.USBError())
			return stage.USBError()
		}

		if stage.In() && size > 0 {
			c.cache.Invalidate(bufAddr, size)
			copy(u.Buffer[offset:offset+size], c.region.Bytes(bufAddr, size))
		}
	}

	u.Complete(true, stage.ResultLen(), usberr.None)
	return nil
}

// armChannel programs base's characteristics, split-control, interrupt
// mask, size and DMA-pointer registers for the next transaction, then
// sets the channel enable bit, per the HCCHAR/HCSPLT/HCTSIZ/HCDMA fields
// TransferStageData's accessors imply a caller must supply.
func (c *Controller) armChannel(base uint32, stage *TransferStageData, bufAddr uint32, size int) {
	dev := stage.Device()
	ep := stage.URB().Endpoint

	hcChar := uint32(ep.Number())<<hcCharEPNumShift |
		uint32(ep.Type())<<hcCharEPTypeShift |
		uint32(dev.Address)<<hcCharDevAddrShift |
		uint32(ep.MaxPacketSize())&hcCharMPSMask
	if stage.In() {
		hcChar |= hcCharEPDirIn
	}

	var hcSplt uint32
	if stage.IsSplit() {
		hcSplt = hcSpltEnable | uint32(stage.SplitPositionFor())<<hcSpltPosShift |
			uint32(dev.HubAddress)<<hcSpltHubAddrShift | uint32(dev.HubPortNumber)&hcSpltPortMask
		if stage.IsSplitComplete() {
			hcSplt |= hcSpltComplete
		}
	}

	hcTSiz := (uint32(stage.PacketsToTransfer())&hcTSizPacketsMask)<<hcTSizPacketsShift | uint32(size)&hcTSizBytesMask

	c.bus.PeripheralEntry()
	c.bus.Write32(base+regHCSplt, hcSplt)
	c.bus.Write32(base+regHCIntMsk, stage.StatusMask())
	c.bus.Write32(base+regHCTSiz, hcTSiz)
	c.bus.Write32(base+regHCDMA, bufAddr)
	c.bus.Write32(base+regHCChar, hcChar|hcCharEnable)
	c.bus.PeripheralExit()
}

// handleChannelIRQ reads back the channel's interrupt status and
// remaining packet/byte counts, acks the status bits, folds the result
// into stage via TransactionComplete, and reports the raw status on done
// so Transfer can distinguish a bulk-retryable transaction error from a
// terminal one.
func (c *Controller) handleChannelIRQ(base uint32, stage *TransferStageData, done chan<- uint32) {
	c.bus.PeripheralEntry()
	status := c.bus.Read32(base + regHCInt)
	c.bus.Write32(base+regHCInt, status)
	tsiz := c.bus.Read32(base + regHCTSiz)
	c.bus.PeripheralExit()

	packetsLeft := (tsiz >> hcTSizPacketsShift) & hcTSizPacketsMask
	bytesLeft := tsiz & hcTSizBytesMask

	stage.TransactionComplete(status, packetsLeft, bytesLeft)

	done <- status
}
