package hub

import (
	"testing"

	"github.com/bcm2835go/bcm2835go/usb"
)

type fakeController struct {
	status    map[int]uint16
	change    map[int]uint16
	powered   map[int]bool
	resetSeen map[int]bool
}

func newFakeController() *fakeController {
	return &fakeController{
		status:    make(map[int]uint16),
		change:    make(map[int]uint16),
		powered:   make(map[int]bool),
		resetSeen: make(map[int]bool),
	}
}

func (f *fakeController) GetPortStatus(port int) (uint16, uint16, error) {
	return f.status[port], f.change[port], nil
}

func (f *fakeController) SetPortFeature(port int, feature int) error {
	switch feature {
	case FeaturePortPower:
		f.powered[port] = true
	case FeaturePortReset:
		f.resetSeen[port] = true
		f.status[port] |= PortEnable
	}
	return nil
}

func (f *fakeController) ClearPortFeature(port int, feature int) error {
	switch feature {
	case FeatureCPortConnection:
		f.change[port] &^= ChangeConnection
	case FeatureCPortEnable:
		f.change[port] &^= ChangeEnable
	case FeatureCPortReset:
		f.change[port] &^= ChangeReset
	}
	return nil
}

type fakeChild struct {
	removed bool
}

func (c *fakeChild) RemoveDevice() { c.removed = true }

func noDelay(ms int) {}

// TestEnumeratePortsAllEmptyCompletesWithoutSpawning covers spec.md §8's
// "Hub with all ports empty" edge case.
func TestEnumeratePortsAllEmptyCompletesWithoutSpawning(t *testing.T) {
	ctrl := newFakeController()
	spawned := 0

	h := NewHub(ctrl, 1, 4, func(port int, speed usb.Speed) (Child, error) {
		spawned++
		return &fakeChild{}, nil
	})

	if err := h.EnumeratePorts(noDelay); err != nil {
		t.Fatalf("EnumeratePorts: %v", err)
	}

	if spawned != 0 {
		t.Fatalf("expected no children spawned on an all-empty hub, got %d", spawned)
	}
	for port := 1; port <= 4; port++ {
		if !ctrl.powered[port] {
			t.Fatalf("expected port %d to be powered even with nothing connected", port)
		}
	}
}

// TestDeviceEnumerationOnConnect covers spec.md §8 scenario 4: a hub
// reports CONNECTION on port 1 with HS signaling; PORT_RESET observes
// ENABLE; a new device is spawned at high speed.
func TestDeviceEnumerationOnConnect(t *testing.T) {
	ctrl := newFakeController()
	ctrl.status[1] = PortConnection | PortHighSpeed

	var gotSpeed usb.Speed
	h := NewHub(ctrl, 1, 1, func(port int, speed usb.Speed) (Child, error) {
		gotSpeed = speed
		return &fakeChild{}, nil
	})

	if err := h.EnumeratePorts(noDelay); err != nil {
		t.Fatalf("EnumeratePorts: %v", err)
	}

	if !ctrl.resetSeen[1] {
		t.Fatal("expected PORT_RESET to be issued for the connected port")
	}
	if gotSpeed != usb.SpeedHigh {
		t.Fatalf("child speed = %v, want HS", gotSpeed)
	}
	if h.children[0] == nil {
		t.Fatal("expected a child device to be recorded at port index 0")
	}
}

func TestHandleStatusChangeDisconnectRemovesChild(t *testing.T) {
	ctrl := newFakeController()
	h := NewHub(ctrl, 1, 1, func(port int, speed usb.Speed) (Child, error) {
		return &fakeChild{}, nil
	})

	child := &fakeChild{}
	h.children[0] = child

	ctrl.change[1] = ChangeConnection
	ctrl.status[1] = 0 // no longer connected

	if err := h.HandleStatusChange(1<<1, noDelay); err != nil {
		t.Fatalf("HandleStatusChange: %v", err)
	}

	if !child.removed {
		t.Fatal("expected RemoveDevice to be called on disconnect")
	}
	if h.children[0] != nil {
		t.Fatal("expected child slot to be cleared after removal")
	}
}

func TestHandleStatusChangeOnHubItselfErrors(t *testing.T) {
	ctrl := newFakeController()
	h := NewHub(ctrl, 1, 1, func(port int, speed usb.Speed) (Child, error) { return &fakeChild{}, nil })

	if err := h.HandleStatusChange(1, noDelay); err == nil {
		t.Fatal("expected an error for a hub-level status change (bit 0)")
	}
}
