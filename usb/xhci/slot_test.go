package xhci

import "testing"

type fakeSender struct {
	nextSlotID uint8
	calls      []TRB
	fail       bool
}

func (s *fakeSender) PostCommand(trb TRB) (uint8, uint8, error) {
	s.calls = append(s.calls, trb)
	if s.fail {
		return 0, 0, nil
	}
	if trb.Type() == TRBTypeEnableSlot {
		s.nextSlotID++
		return CompletionCodeSuccess, s.nextSlotID, nil
	}
	return CompletionCodeSuccess, 0, nil
}

func TestSlotManagerEnableAndAddress(t *testing.T) {
	sender := &fakeSender{}
	m := NewSlotManager(sender)

	slotID, err := m.EnableSlot()
	if err != nil {
		t.Fatalf("EnableSlot: %v", err)
	}
	if slotID != 1 {
		t.Fatalf("slotID = %d, want 1", slotID)
	}

	if err := m.AddressDevice(slotID, 0x5000, InputContext{}); err != nil {
		t.Fatalf("AddressDevice: %v", err)
	}
}

func TestSlotManagerAddressDeviceOnUnallocatedSlotPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic addressing a slot that was never enabled")
		}
	}()

	m := NewSlotManager(&fakeSender{})
	m.AddressDevice(3, 0x1000, InputContext{})
}

func TestSlotManagerEnableSlotFailurePropagates(t *testing.T) {
	m := NewSlotManager(&fakeSender{fail: true})

	if _, err := m.EnableSlot(); err == nil {
		t.Fatal("expected an error when the command completion reports failure")
	}
}

func TestResetHaltedEndpointSequence(t *testing.T) {
	sender := &fakeSender{}
	ring := NewRing(0x8000, 4)

	if err := ResetHaltedEndpoint(sender, 1, 2, ring, 0x8000+16, 0, 0); err != nil {
		t.Fatalf("ResetHaltedEndpoint: %v", err)
	}

	if len(sender.calls) != 2 {
		t.Fatalf("expected 2 commands (reset endpoint + set TR dequeue), got %d", len(sender.calls))
	}
	if sender.calls[0].Type() != TRBTypeResetEndpoint {
		t.Fatalf("first command type = %d, want ResetEndpoint", sender.calls[0].Type())
	}
	if sender.calls[1].Type() != TRBTypeSetTRDequeue {
		t.Fatalf("second command type = %d, want SetTRDequeue", sender.calls[1].Type())
	}
}

func TestResetHaltedEndpointWithTTSendsClearTTBuffer(t *testing.T) {
	sender := &fakeSender{}
	ring := NewRing(0x9000, 4)

	if err := ResetHaltedEndpoint(sender, 1, 2, ring, 0x9000+16, 5, 1); err != nil {
		t.Fatalf("ResetHaltedEndpoint: %v", err)
	}

	if len(sender.calls) != 3 {
		t.Fatalf("expected 3 commands including Clear-TT-Buffer, got %d", len(sender.calls))
	}
}
