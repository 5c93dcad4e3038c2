package dwhci

import (
	"testing"

	"github.com/bcm2835go/bcm2835go/usb"
	"github.com/bcm2835go/bcm2835go/usb/usberr"
)

func newBulkURB(bufLen int) (*usb.URB, *usb.Endpoint) {
	dev := usb.NewRootDevice(nil, usb.SpeedHigh, 1)
	ep := usb.NewEndpoint(dev, 1, usb.DirectionIn, usb.TypeBulk, 64, 0)
	return usb.NewURB(ep, make([]byte, bufLen)), ep
}

func TestTransferStageDataSinglePacketCompletes(t *testing.T) {
	u, _ := newBulkURB(64)
	d := NewTransferStageData(1, u, true, false)

	if d.IsStageComplete() {
		t.Fatal("expected stage incomplete before any transaction")
	}

	d.TransactionComplete(IntXferComplete, 0, 0)

	if !d.IsStageComplete() {
		t.Fatal("expected stage complete after one full-size transaction")
	}
	if d.ResultLen() != 64 {
		t.Fatalf("ResultLen = %d, want 64", d.ResultLen())
	}
}

func TestTransferStageDataMultiPacketAdvancesPID(t *testing.T) {
	u, ep := newBulkURB(128) // 2 packets of 64 bytes
	d := NewTransferStageData(1, u, true, false)

	if d.PacketsToTransfer() != 2 {
		t.Fatalf("PacketsToTransfer = %d, want 2", d.PacketsToTransfer())
	}

	before := ep.GetNextPID(false)
	d.TransactionComplete(IntXferComplete, 1, 64) // only 1 of 2 packets done

	if d.IsStageComplete() {
		t.Fatal("expected stage incomplete after partial transaction")
	}
	if d.PacketsToTransfer() != 1 {
		t.Fatalf("PacketsToTransfer after partial completion = %d, want 1", d.PacketsToTransfer())
	}
	if ep.GetNextPID(false) == before {
		t.Fatal("expected PID toggle to advance after an odd packet count")
	}
}

func TestTransferStageDataBulkXactErrorRetries(t *testing.T) {
	u, _ := newBulkURB(64)
	d := NewTransferStageData(1, u, true, false)

	d.TransactionComplete(IntXactError, 1, 64)

	if d.IsStageComplete() {
		t.Fatal("a transaction error must not silently complete the stage")
	}
	if !d.IsRetryOK() {
		t.Fatal("expected retry to still be permitted after a single XactError")
	}
}

func TestTransferStageDataUSBErrorPriority(t *testing.T) {
	u, _ := newBulkURB(64)
	d := NewTransferStageData(1, u, true, false)
	d.TransactionComplete(IntStall|IntXactError, 0, 0)

	if got := d.USBError(); got != usberr.Stall {
		t.Fatalf("USBError = %v, want Stall (highest priority)", got)
	}
}
