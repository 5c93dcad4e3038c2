package devsvc

import "testing"

func TestAddPortDeviceUsesBusPortName(t *testing.T) {
	reset()
	defer reset()

	type fakeDevice struct{ n int }
	dev := &fakeDevice{n: 1}

	AddPortDevice("usb", 1, 1, dev)

	got, ok := GetDevice("usb1-1")
	if !ok {
		t.Fatal("expected usb1-1 to be registered")
	}
	if got.(*fakeDevice) != dev {
		t.Fatal("GetDevice returned a different value than was registered")
	}
}

func TestAddNamedDeviceFixedName(t *testing.T) {
	reset()
	defer reset()

	type pwmBackend struct{}
	dev := &pwmBackend{}

	AddNamedDevice("sndpwm", dev)

	if _, ok := GetDevice("sndpwm"); !ok {
		t.Fatal("expected sndpwm to be registered")
	}

	RemoveDevice("sndpwm")

	if _, ok := GetDevice("sndpwm"); ok {
		t.Fatal("expected sndpwm to be removed")
	}
}

func TestAddDeviceNumbersWithoutPort(t *testing.T) {
	reset()
	defer reset()

	AddDevice("umsd", 1, "device-one")

	got, ok := GetDevice("umsd1")
	if !ok {
		t.Fatal("expected umsd1 to be registered")
	}
	if got.(string) != "device-one" {
		t.Fatalf("got %v, want device-one", got)
	}
}

func TestNamesListsRegisteredDevices(t *testing.T) {
	reset()
	defer reset()

	AddNamedDevice("sndpwm", 1)
	AddNamedDevice("sndi2s", 2)

	names := Names()
	if len(names) != 2 {
		t.Fatalf("got %d names, want 2", len(names))
	}
}
