// Package hub implements the USB hub class protocol: port power-up,
// per-port reset/enable/speed-detect enumeration, and the interrupt
// endpoint's status-change bitmap polling loop, grounded on
// original_source/lib/usb/usbstandardhub.cpp.
package hub

import (
	"fmt"

	"github.com/bcm2835go/bcm2835go/devsvc"
	"github.com/bcm2835go/bcm2835go/usb"
)

// Port status/change bits, per wPortStatus/wChangeStatus (PORT_*/C_PORT_*
// masks referenced throughout the grounding file).
const (
	PortConnection = 1 << 0
	PortEnable     = 1 << 1
	PortSuspend    = 1 << 2
	PortOverCurrent = 1 << 3
	PortReset      = 1 << 4
	PortPower      = 1 << 8
	PortLowSpeed   = 1 << 9
	PortHighSpeed  = 1 << 10

	ChangeConnection = 1 << 0
	ChangeEnable     = 1 << 1
	ChangeSuspend    = 1 << 2
	ChangeOverCurrent = 1 << 3
	ChangeReset      = 1 << 4
)

// FeatureSelector values for Set/Clear-Feature requests to a hub port,
// per PORT_POWER/PORT_RESET/PORT_ENABLE/C_PORT_*.
const (
	FeaturePortEnable      = 1
	FeaturePortSuspend     = 2
	FeaturePortOverCurrent = 3
	FeaturePortReset       = 4
	FeaturePortPower       = 8
	FeatureCPortConnection = 16
	FeatureCPortEnable     = 17
	FeatureCPortSuspend    = 18
	FeatureCPortOverCurrent = 19
	FeatureCPortReset      = 20
)

// Controller is the subset of host controller operations the hub protocol
// needs against a device's control endpoint.
type Controller interface {
	GetPortStatus(port int) (status, change uint16, err error)
	SetPortFeature(port int, feature int) error
	ClearPortFeature(port int, feature int) error
}

// Child is a hub-attached child device. The hub keeps one per port in its
// children slice and calls RemoveDevice when that port disconnects; Child
// has no link back to the hub.
type Child interface {
	RemoveDevice()
}

// Hub tracks one standard hub's port array and drives enumeration and the
// status-change interrupt handler, per CUSBStandardHub.
type Hub struct {
	ctrl Controller

	busNumber  int
	nPorts     int
	powerIsOn  bool
	children   []Child // nil entry = empty port
	configured []bool

	newChildFunc func(port int, speed usb.Speed) (Child, error)
}

// NewHub constructs a hub with nPorts ports on the given bus number (used
// only for the "usbB-P" device-name-service registration below; the
// legacy controller and xHCI root hub both use bus 1). newChild is called
// once per newly-connected, reset, speed-detected port to build and
// initialize the child device; it returns the resulting Child for
// bookkeeping.
func NewHub(ctrl Controller, busNumber, nPorts int, newChild func(port int, speed usb.Speed) (Child, error)) *Hub {
	return &Hub{
		ctrl:         ctrl,
		busNumber:    busNumber,
		nPorts:       nPorts,
		children:     make([]Child, nPorts),
		configured:   make([]bool, nPorts),
		newChildFunc: newChild,
	}
}

// powerOnPorts sets PORT_POWER on every port the first time EnumeratePorts
// runs, per the grounding file's EnumeratePorts power-up block, then waits
// the 510ms settling delay through the caller-supplied msDelay (so tests
// can inject a fake timer).
func (h *Hub) powerOnPorts(msDelay func(ms int)) error {
	if h.powerIsOn {
		return nil
	}

	for port := 0; port < h.nPorts; port++ {
		if err := h.ctrl.SetPortFeature(port+1, FeaturePortPower); err != nil {
			return fmt.Errorf("hub: cannot power port %d: %w", port+1, err)
		}
	}

	h.powerIsOn = true
	msDelay(510)

	return nil
}

// EnumeratePorts powers on all ports (once), then for every empty port
// checks connection status, resets connected ports, reads back the
// resulting enable/speed/over-current bits, and spawns a child device,
// per EnumeratePorts.
func (h *Hub) EnumeratePorts(msDelay func(ms int)) error {
	if err := h.powerOnPorts(msDelay); err != nil {
		return err
	}

	for port := 0; port < h.nPorts; port++ {
		if h.children[port] != nil {
			continue
		}

		status, _, err := h.ctrl.GetPortStatus(port + 1)
		if err != nil {
			continue
		}

		if status&PortConnection == 0 {
			continue
		}

		if err := h.ctrl.SetPortFeature(port+1, FeaturePortReset); err != nil {
			continue
		}
		msDelay(100)

		status, _, err = h.ctrl.GetPortStatus(port + 1)
		if err != nil {
			return err
		}

		if status&PortEnable == 0 {
			continue
		}

		if status&PortOverCurrent != 0 {
			h.ctrl.ClearPortFeature(port+1, FeaturePortPower)
			return fmt.Errorf("hub: over-current condition on port %d", port+1)
		}

		speed := usb.SpeedFull
		switch {
		case status&PortLowSpeed != 0:
			speed = usb.SpeedLow
		case status&PortHighSpeed != 0:
			speed = usb.SpeedHigh
		}

		child, err := h.newChildFunc(port, speed)
		if err != nil {
			continue
		}
		h.children[port] = child

		devsvc.AddPortDevice("usb", h.busNumber, port+1, child)
	}

	return nil
}

// DisablePort clears PORT_ENABLE and marks the port unconfigured.
func (h *Hub) DisablePort(port int) error {
	if err := h.ctrl.ClearPortFeature(port+1, FeaturePortEnable); err != nil {
		return fmt.Errorf("hub: cannot disable port %d: %w", port+1, err)
	}
	h.configured[port] = false
	return nil
}

// RemoveDeviceAt tears down the child at port, per RemoveDeviceAt.
func (h *Hub) RemoveDeviceAt(port int) error {
	if err := h.DisablePort(port); err != nil {
		return err
	}

	if h.children[port] != nil {
		h.children[port].RemoveDevice()
		h.children[port] = nil
		devsvc.RemoveDevice(fmt.Sprintf("usb%d-%d", h.busNumber, port+1))
	}

	return nil
}

// HandleStatusChange processes one interrupt-endpoint status-change
// report: bitmap has bit i+1 set when port i+1 changed (bit 0 is the hub
// itself, unsupported here per the grounding file's panic on that case).
// For each changed port it clears the reported C_PORT_* change bits and,
// on a connection change, enumerates a new child or removes the departed
// one, per HandlePortStatusChange.
func (h *Hub) HandleStatusChange(bitmap uint16, msDelay func(ms int)) error {
	if bitmap&1 != 0 {
		return fmt.Errorf("hub: status change on the hub itself is not handled")
	}

	for port := 0; port < h.nPorts; port++ {
		if bitmap&(1<<uint(port+1)) == 0 {
			continue
		}

		status, change, err := h.ctrl.GetPortStatus(port + 1)
		if err != nil {
			return fmt.Errorf("hub: cannot get port %d status: %w", port+1, err)
		}

		if change&ChangeEnable != 0 {
			h.ctrl.ClearPortFeature(port+1, FeatureCPortEnable)
		}
		if change&ChangeReset != 0 {
			h.ctrl.ClearPortFeature(port+1, FeatureCPortReset)
		}

		if change&ChangeConnection != 0 {
			h.ctrl.ClearPortFeature(port+1, FeatureCPortConnection)

			if status&PortConnection != 0 {
				if h.children[port] == nil {
					if err := h.EnumeratePorts(msDelay); err != nil {
						return err
					}
				}
			} else if h.children[port] != nil {
				if err := h.RemoveDeviceAt(port); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
