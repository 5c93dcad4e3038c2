package gpio

import (
	"testing"

	"github.com/bcm2835go/bcm2835go/testboard"
)

func TestSelectFunctionRoundTrip(t *testing.T) {
	bus := testboard.NewMMIOFake()

	p, err := NewPin(bus, 18)
	if err != nil {
		t.Fatalf("NewPin: %v", err)
	}

	p.SelectFunction(FunctionAlt5)

	if got := p.Function(); got != FunctionAlt5 {
		t.Fatalf("Function() = %v, want %v", got, FunctionAlt5)
	}
}

func TestSelectFunctionPreservesOtherLines(t *testing.T) {
	bus := testboard.NewMMIOFake()

	p0, _ := NewPin(bus, 10)
	p1, _ := NewPin(bus, 11)

	p0.SelectFunction(FunctionOutput)
	p1.SelectFunction(FunctionAlt0)

	if got := p0.Function(); got != FunctionOutput {
		t.Fatalf("pin 10 Function() = %v, want Output", got)
	}
	if got := p1.Function(); got != FunctionAlt0 {
		t.Fatalf("pin 11 Function() = %v, want Alt0", got)
	}
}

func TestHighLowValue(t *testing.T) {
	bus := testboard.NewMMIOFake()
	p, _ := NewPin(bus, 5)

	// Model level read-back: writes to the set/clear registers flip the
	// corresponding bit in the level register, as real hardware would.
	bus.OnWrite32 = func(addr uint32, val uint32) {
		switch addr {
		case gpset0:
			bus.Set(gplev0, bus.Read32(gplev0)|val)
		case gpclr0:
			bus.Set(gplev0, bus.Read32(gplev0)&^val)
		}
	}

	p.High()
	if !p.Value() {
		t.Fatal("expected pin high after High()")
	}

	p.Low()
	if p.Value() {
		t.Fatal("expected pin low after Low()")
	}
}

func TestClockSetDividerRejectsOutOfRange(t *testing.T) {
	bus := testboard.NewMMIOFake()
	c := NewClock(bus, 0x200, 0x204)

	if err := c.SetDivider(ClockSourcePLLD, 1<<12); err == nil {
		t.Fatal("expected error for out-of-range divisor")
	}
}

func TestClockEnableDisable(t *testing.T) {
	bus := testboard.NewMMIOFake()
	c := NewClock(bus, 0x200, 0x204)

	if err := c.SetDivider(ClockSourceOscillator, 50); err != nil {
		t.Fatalf("SetDivider: %v", err)
	}

	if !c.Enabled() {
		t.Fatal("expected clock enabled after SetDivider")
	}

	c.Disable()

	if c.Enabled() {
		t.Fatal("expected clock disabled after Disable")
	}
}
