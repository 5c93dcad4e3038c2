package usb

import "testing"

func TestEndpointPIDTogglesOnOddPacketCounts(t *testing.T) {
	dev := NewRootDevice(nil, SpeedHigh, 1)
	ep := NewEndpoint(dev, 1, DirectionIn, TypeBulk, 64, 0)

	if got := ep.GetNextPID(false); got != PIDData0 {
		t.Fatalf("initial PID = %v, want DATA0", got)
	}

	ep.SkipPID(1, false)
	if got := ep.GetNextPID(false); got != PIDData1 {
		t.Fatalf("PID after 1 packet = %v, want DATA1", got)
	}

	ep.SkipPID(2, false)
	if got := ep.GetNextPID(false); got != PIDData1 {
		t.Fatalf("PID after 2 more packets = %v, want unchanged DATA1", got)
	}
}

func TestEndpointStatusStagePIDIsAlwaysData1(t *testing.T) {
	dev := NewRootDevice(nil, SpeedHigh, 1)
	ep := NewEndpoint0(dev)

	if got := ep.GetNextPID(true); got != PIDData1 {
		t.Fatalf("status stage PID = %v, want DATA1", got)
	}
}

func TestEndpoint0FirstDataStageIsSetup(t *testing.T) {
	dev := NewRootDevice(nil, SpeedHigh, 1)
	ep := NewEndpoint0(dev)

	if got := ep.GetNextPID(false); got != PIDSetup {
		t.Fatalf("first PID = %v, want SETUP", got)
	}
}

func TestSetMaxPacketSizeRejectsInvalidValues(t *testing.T) {
	dev := NewRootDevice(nil, SpeedHigh, 1)
	ep := NewEndpoint0(dev)

	if ep.SetMaxPacketSize(100) {
		t.Fatal("expected 100 to be rejected as an invalid EP0 max packet size")
	}
	if !ep.SetMaxPacketSize(64) {
		t.Fatal("expected 64 to be accepted")
	}
}

func TestIntervalFromBIntervalHighSpeed(t *testing.T) {
	if got := IntervalFromBInterval(SpeedHigh, TypeInterrupt, 4); got != 8 {
		t.Fatalf("interval = %d, want 8 (2^(4-1))", got)
	}
}
