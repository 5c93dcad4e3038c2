package testboard

import (
	"testing"

	"github.com/bcm2835go/bcm2835go/usb/xhci"
)

func TestUSBFakeReplaysScriptInOrder(t *testing.T) {
	f := NewUSBFake(
		ScriptedCompletion{CompletionCode: xhci.CompletionCodeSuccess, SlotID: 3},
		ScriptedCompletion{CompletionCode: xhci.CompletionCodeSuccess},
	)

	code, slotID, err := f.PostCommand(xhci.TRB{})
	if err != nil || code != xhci.CompletionCodeSuccess || slotID != 3 {
		t.Fatalf("first call = (%d, %d, %v), want (1, 3, nil)", code, slotID, err)
	}

	code, _, err = f.PostCommand(xhci.TRB{})
	if err != nil || code != xhci.CompletionCodeSuccess {
		t.Fatalf("second call = (%d, _, %v), want (1, nil)", code, err)
	}

	if !f.Exhausted() {
		t.Fatal("expected the script to be exhausted after 2 calls")
	}

	if len(f.Calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(f.Calls))
	}
}

func TestUSBFakeReportsExhaustionAsAnError(t *testing.T) {
	f := NewUSBFake()

	if _, _, err := f.PostCommand(xhci.TRB{}); err == nil {
		t.Fatal("expected an error posting a command with no scripted completions")
	}
}
