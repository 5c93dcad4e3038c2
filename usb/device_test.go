package usb

import "testing"

func TestNewChildDeviceInheritsSplitTransferFromHSHub(t *testing.T) {
	hsHub := NewRootDevice(nil, SpeedHigh, 1)
	hsHub.Address = 2

	child := NewChildDevice(nil, SpeedFull, hsHub, 0)

	if !child.SplitTransfer {
		t.Fatal("expected a full-speed child of a high-speed hub to require split transactions")
	}
	if child.HubAddress != hsHub.Address {
		t.Fatalf("HubAddress = %d, want %d", child.HubAddress, hsHub.Address)
	}
	if child.HubPortNumber != 1 {
		t.Fatalf("HubPortNumber = %d, want 1", child.HubPortNumber)
	}
}

func TestNewChildDeviceHighSpeedDoesNotSplit(t *testing.T) {
	hsHub := NewRootDevice(nil, SpeedHigh, 1)
	child := NewChildDevice(nil, SpeedHigh, hsHub, 0)

	if child.SplitTransfer {
		t.Fatal("a high-speed child should never need split transactions")
	}
}

func TestNewChildDeviceInheritsTTThroughNestedHub(t *testing.T) {
	hsHub := NewRootDevice(nil, SpeedHigh, 1)
	hsHub.Address = 2

	fsHub := NewChildDevice(nil, SpeedFull, hsHub, 0) // routed through hsHub's TT
	fsHub.Address = 3

	grandchild := NewChildDevice(nil, SpeedLow, fsHub, 2)

	if grandchild.TTHubDevice != hsHub {
		t.Fatal("expected the grandchild to inherit the high-speed hub's TT from its parent, not re-derive one")
	}
	if grandchild.HubAddress != fsHub.HubAddress {
		t.Fatalf("HubAddress = %d, want inherited %d", grandchild.HubAddress, fsHub.HubAddress)
	}
}

func TestRouteStringAppendsAcrossTiers(t *testing.T) {
	root := NewRootDevice(nil, SpeedHigh, 1)
	tier1 := NewChildDevice(nil, SpeedHigh, root, 2) // port 3
	tier2 := NewChildDevice(nil, SpeedHigh, tier1, 0) // port 1

	if tier1.RouteString != 3 {
		t.Fatalf("tier1 RouteString = %#x, want 0x3", tier1.RouteString)
	}
	if tier2.RouteString != 0x13 {
		t.Fatalf("tier2 RouteString = %#x, want 0x13", tier2.RouteString)
	}
}

func TestNameDeviceUnknownForVendorSpecificClass(t *testing.T) {
	d := NewRootDevice(nil, SpeedHigh, 1)
	d.DeviceClass = 0xFF

	if got := d.NameDevice(); got != "" {
		t.Fatalf("NameDevice = %q, want empty for vendor-specific class", got)
	}
}
