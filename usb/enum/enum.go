// Package enum drives the device-enumeration sequence a freshly reset USB
// device goes through before it is usable: fetch its device descriptor,
// assign a bus address, fetch its configuration descriptor, walk its
// interfaces and hand each one to a registered driver, then select the
// configuration. Grounded on
// original_source/lib/usb/usbdevice.cpp's Initialize/Configure.
package enum

import (
	"encoding/binary"
	"fmt"

	"github.com/bcm2835go/bcm2835go/usb"
)

const (
	descriptorDevice        = 1
	descriptorConfiguration = 2
	descriptorInterface     = 4
	descriptorIndexDefault  = 0

	deviceDescLen    = 18
	configDescHeader = 9
	interfaceDescLen = 9

	maxConfigDescSize = 4096
)

// Function is a driver-claimed USB interface, handed its own sub-slice of
// the configuration descriptor to parse (endpoint descriptors etc.) during
// Initialize, per CUSBFunction's contract.
type Function interface {
	Initialize() error
}

// Driver claims zero or more functions on a device during enumeration, per
// CUSBDeviceFactory::GetDevice's name-keyed dispatch table. Name is tried
// first against the device's vendor/product name, then its class/subclass/
// protocol name, then (for the first interface only, in the grounding
// file) the interface's own class name; Probe returns ok=false to decline.
type Driver interface {
	Probe(dev *usb.Device, name string, ifaceDesc []byte) (Function, bool)
}

// InterfaceDescriptor is the parsed subset of a USB interface descriptor
// this package needs to drive probing and logging.
type InterfaceDescriptor struct {
	Number          uint8
	AlternateSetting uint8
	Class, SubClass, Protocol uint8
}

// Enumerate runs a freshly addressed-or-not device through the full
// Initialize/Configure sequence against host, using pool to allocate a bus
// address (pool is nil on xHCI, where the controller's Address-Device
// command assigns an opaque slot ID instead of a pool-drawn address — the
// caller is expected to have already addressed the device in that case).
// It returns the claimed Functions in interface order.
func Enumerate(host usb.HostController, dev *usb.Device, pool *usb.NumberPool, drivers []Driver) ([]Function, error) {
	devDesc, err := fetchDeviceDescriptor(host, dev)
	if err != nil {
		return nil, err
	}

	dev.VendorID = binary.LittleEndian.Uint16(devDesc[8:10])
	dev.ProductID = binary.LittleEndian.Uint16(devDesc[10:12])
	dev.DeviceClass = devDesc[4]
	dev.SubClass = devDesc[5]
	dev.Protocol = devDesc[6]

	if pool != nil {
		addr := pool.Allocate()
		if addr == usb.Invalid {
			return nil, fmt.Errorf("enum: too many devices")
		}

		if err := host.SetAddress(dev.Endpoint0, uint8(addr)); err != nil {
			pool.Free(addr)
			return nil, fmt.Errorf("enum: cannot set address %d: %w", addr, err)
		}
		dev.Address = uint8(addr)
	}

	configDesc, err := fetchConfigDescriptor(host, dev)
	if err != nil {
		return nil, err
	}

	if len(configDesc) < configDescHeader {
		return nil, fmt.Errorf("enum: invalid configuration descriptor")
	}
	configValue := configDesc[5]

	ifaces := parseInterfaces(configDesc)

	var functions []Function
	for i, iface := range ifaces {
		if iface.AlternateSetting != 0 {
			continue
		}
		if len(functions) >= usb.MaxFunctionsPerDevice {
			break
		}

		ifaceDesc := configDesc[ifaceOffsets(configDesc)[i]:]

		fn := probeInterface(dev, drivers, iface, ifaceDesc)
		if fn == nil {
			continue
		}
		if err := fn.Initialize(); err != nil {
			continue
		}
		functions = append(functions, fn)
	}

	if len(functions) == 0 {
		host.SetConfiguration(dev.Endpoint0, 0)
		return nil, fmt.Errorf("enum: device has no supported function")
	}

	if err := host.SetConfiguration(dev.Endpoint0, configValue); err != nil {
		return nil, fmt.Errorf("enum: cannot set configuration %d: %w", configValue, err)
	}

	return functions, nil
}

// fetchDeviceDescriptor replicates Initialize's two-stage device descriptor
// fetch: an 8-byte read (to learn bMaxPacketSize0, the only field that fits
// every device's default max packet size) followed by SetMaxPacketSize and
// a full 18-byte re-read.
func fetchDeviceDescriptor(host usb.HostController, dev *usb.Device) ([]byte, error) {
	short := make([]byte, 8)
	n, err := host.GetDescriptor(dev.Endpoint0, descriptorDevice, descriptorIndexDefault, short)
	if err != nil || n != len(short) {
		return nil, fmt.Errorf("enum: cannot get device descriptor (short): %v", err)
	}

	if !dev.Endpoint0.SetMaxPacketSize(uint32(short[7])) {
		return nil, fmt.Errorf("enum: unsupported EP0 max packet size %d", short[7])
	}

	full := make([]byte, deviceDescLen)
	n, err = host.GetDescriptor(dev.Endpoint0, descriptorDevice, descriptorIndexDefault, full)
	if err != nil || n != len(full) {
		return nil, fmt.Errorf("enum: cannot get device descriptor: %v", err)
	}

	if full[0] != deviceDescLen || full[1] != descriptorDevice {
		return nil, fmt.Errorf("enum: invalid device descriptor")
	}

	return full, nil
}

// fetchConfigDescriptor replicates the short-header-then-wTotalLength-sized
// re-read sequence.
func fetchConfigDescriptor(host usb.HostController, dev *usb.Device) ([]byte, error) {
	short := make([]byte, configDescHeader)
	n, err := host.GetDescriptor(dev.Endpoint0, descriptorConfiguration, descriptorIndexDefault, short)
	if err != nil || n != len(short) {
		return nil, fmt.Errorf("enum: cannot get configuration descriptor (short): %v", err)
	}

	if short[0] != configDescHeader || short[1] != descriptorConfiguration {
		return nil, fmt.Errorf("enum: invalid configuration descriptor")
	}

	total := int(binary.LittleEndian.Uint16(short[2:4]))
	if total < configDescHeader || total > maxConfigDescSize {
		return nil, fmt.Errorf("enum: invalid configuration descriptor length %d", total)
	}

	full := make([]byte, total)
	n, err = host.GetDescriptor(dev.Endpoint0, descriptorConfiguration, descriptorIndexDefault, full)
	if err != nil || n != total {
		return nil, fmt.Errorf("enum: cannot get configuration descriptor: %v", err)
	}

	return full, nil
}

// parseInterfaces walks every descriptor in configDesc and collects each
// interface descriptor's parsed fields, in the order they appear.
func parseInterfaces(configDesc []byte) []InterfaceDescriptor {
	var out []InterfaceDescriptor

	for off := configDescHeader; off+2 <= len(configDesc); {
		length := int(configDesc[off])
		if length == 0 || off+length > len(configDesc) {
			break
		}

		if configDesc[off+1] == descriptorInterface && length >= interfaceDescLen {
			out = append(out, InterfaceDescriptor{
				Number:           configDesc[off+2],
				AlternateSetting: configDesc[off+3],
				Class:            configDesc[off+5],
				SubClass:         configDesc[off+6],
				Protocol:         configDesc[off+7],
			})
		}

		off += length
	}

	return out
}

// ifaceOffsets returns the byte offset of each interface descriptor found
// by parseInterfaces, in the same order, so callers can hand a Driver the
// raw sub-slice starting at its interface descriptor.
func ifaceOffsets(configDesc []byte) []int {
	var offs []int

	for off := configDescHeader; off+2 <= len(configDesc); {
		length := int(configDesc[off])
		if length == 0 || off+length > len(configDesc) {
			break
		}

		if configDesc[off+1] == descriptorInterface && length >= interfaceDescLen {
			offs = append(offs, off)
		}

		off += length
	}

	return offs
}

// probeInterface tries every driver against, in order, the device's
// vendor/product name, its class/subclass/protocol name, and finally its
// interface's own class/subclass/protocol name, per GetDevice's
// vendor-name-then-device-name-then-interface-name fallback.
func probeInterface(dev *usb.Device, drivers []Driver, iface InterfaceDescriptor, ifaceDesc []byte) Function {
	names := []string{dev.NameVendor()}
	if n := dev.NameDevice(); n != "" {
		names = append(names, n)
	}
	if iface.Class != 0 && iface.Class != 0xFF {
		names = append(names, fmt.Sprintf("dev%x-%x-%x", iface.Class, iface.SubClass, iface.Protocol))
	}

	for _, name := range names {
		for _, d := range drivers {
			if fn, ok := d.Probe(dev, name, ifaceDesc); ok {
				return fn
			}
		}
	}

	return nil
}
