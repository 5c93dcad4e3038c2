package testboard

import (
	"fmt"

	"github.com/bcm2835go/bcm2835go/usb/xhci"
)

// ScriptedCompletion is one canned response to a command TRB, keyed to
// the order PostCommand is called in -- the same "feed a fixed sequence
// of completion events to the code under test" idiom TimerFake and
// MMIOFake use for their own hardware stand-ins.
type ScriptedCompletion struct {
	CompletionCode uint8
	SlotID         uint8
	Err            error
}

// USBFake is a scripted xHCI command-ring double: it satisfies
// xhci.CommandSender, replaying one ScriptedCompletion per PostCommand
// call in the order given to NewUSBFake and recording every command TRB
// it was handed, so tests can drive usb/xhci's SlotManager and
// ResetHaltedEndpoint end to end without a real controller.
type USBFake struct {
	script []ScriptedCompletion
	next   int

	Calls []xhci.TRB
}

// NewUSBFake returns a fake that replays script in order; a PostCommand
// call past the end of script is a test-authoring error and is reported
// as such rather than silently succeeding.
func NewUSBFake(script ...ScriptedCompletion) *USBFake {
	return &USBFake{script: script}
}

func (f *USBFake) PostCommand(trb xhci.TRB) (completionCode uint8, slotID uint8, err error) {
	f.Calls = append(f.Calls, trb)

	if f.next >= len(f.script) {
		return 0, 0, fmt.Errorf("testboard: usbfake has no scripted completion for call %d (trb type %d)", len(f.Calls), trb.Type())
	}

	resp := f.script[f.next]
	f.next++

	return resp.CompletionCode, resp.SlotID, resp.Err
}

// Exhausted reports whether every scripted completion has been consumed,
// for tests that want to assert the code under test issued exactly the
// expected number of commands.
func (f *USBFake) Exhausted() bool { return f.next == len(f.script) }

var _ xhci.CommandSender = (*USBFake)(nil)
