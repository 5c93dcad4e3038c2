// Package devsvc is a process-wide device name registry, mirroring
// CDeviceNameService::Get()->AddDevice() from
// original_source/lib/usb/usbstandardhub.cpp and
// original_source/lib/sound/pwmsoundbasedevice.cpp. USB hub enumeration
// registers each newly addressed device under a bus-port name
// ("usb1-1"); the sound back ends register themselves under a fixed name
// ("sndpwm", "sndi2s"). Kept as a package-level registry rather than a
// constructed value because registration happens from deep inside
// interrupt-adjacent enumeration code that has no clean path back to a
// `main`-owned service, per spec.md §9's "service locator stays available
// via an interior mutability cell only where registration order forces
// it (device name service)".
package devsvc

import (
	"fmt"
	"sync"
)

var (
	mu      sync.Mutex
	devices = make(map[string]interface{})
)

// AddDevice registers dev under "prefixN" (e.g. AddDevice("usb", 1, dev)
// registers "usb1"), matching AddDevice(prefix, number, this, ...)'s
// naming convention in the grounding files.
func AddDevice(prefix string, number int, dev interface{}) {
	AddNamedDevice(fmt.Sprintf("%s%d", prefix, number), dev)
}

// AddPortDevice registers dev under "prefixBus-Port" (e.g.
// AddPortDevice("usb", 1, 1, dev) registers "usb1-1"), the naming scheme
// spec.md §8 scenario 4 requires for hub-enumerated devices.
func AddPortDevice(prefix string, bus, port int, dev interface{}) {
	AddNamedDevice(fmt.Sprintf("%s%d-%d", prefix, bus, port), dev)
}

// AddNamedDevice registers dev under a fixed name (e.g. "sndpwm",
// "sndi2s"), matching AddDevice("sndpwm", this, ...)'s fixed-name form.
func AddNamedDevice(name string, dev interface{}) {
	mu.Lock()
	defer mu.Unlock()
	devices[name] = dev
}

// RemoveDevice unregisters name, if present.
func RemoveDevice(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(devices, name)
}

// GetDevice looks up a previously registered device by name.
func GetDevice(name string) (interface{}, bool) {
	mu.Lock()
	defer mu.Unlock()
	dev, ok := devices[name]
	return dev, ok
}

// Names returns the currently registered device names, for diagnostics.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()

	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	return names
}

// reset clears the registry; used only by tests, which would otherwise
// leak registrations across test functions through the shared package
// state.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	devices = make(map[string]interface{})
}
