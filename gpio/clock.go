package gpio

import (
	"fmt"

	"github.com/bcm2835go/bcm2835go/mmio"
)

// Clock drives one of the SoC's general-purpose clock generators (GPCLK0-2),
// used to derive the bit clocks the sound back ends route through alternate
// GPIO functions. Not present in the teacher package; grounded on the
// BCM2835 ARM peripherals clock manager register layout and modeled after
// the request/release naming of other_examples' go-gpiocdev line API
// (SPEC_FULL.md's domain-stack section), adapted to a bare-metal register
// pair instead of a Linux character-device ioctl.
type Clock struct {
	bus    mmio.Bus
	ctlReg uint32
	divReg uint32
}

const (
	cmPassword = 0x5A000000

	cmCtlEnable = 1 << 4
	cmCtlKill   = 1 << 5
	cmCtlBusy   = 1 << 7

	cmCtlSrcShift = 0
	cmDivIntShift = 12
)

// ClockSource selects the generator's reference oscillator.
type ClockSource uint32

const (
	ClockSourceGND       ClockSource = 0
	ClockSourceOscillator ClockSource = 1
	ClockSourcePLLA      ClockSource = 4
	ClockSourcePLLC      ClockSource = 5
	ClockSourcePLLD      ClockSource = 6
)

// NewClock binds a clock generator's control/divisor register pair.
func NewClock(bus mmio.Bus, ctlReg, divReg uint32) *Clock {
	return &Clock{bus: bus, ctlReg: ctlReg, divReg: divReg}
}

// SetDivider configures the generator for source, with an integer divisor
// (the fractional field is left at zero; none of the sound back ends need
// fractional division), and enables it. The password field required by
// the clock manager on every write is applied automatically.
func (c *Clock) SetDivider(src ClockSource, divisor uint32) error {
	if divisor == 0 || divisor >= 1<<12 {
		return fmt.Errorf("gpio: clock divisor %d out of range", divisor)
	}

	c.bus.PeripheralEntry()
	defer c.bus.PeripheralExit()

	// Kill and wait for not-busy before reprogramming, per the clock
	// manager's documented safe-reconfiguration sequence.
	c.bus.Write32(c.ctlReg, cmPassword|cmCtlKill)
	for c.bus.Read32(c.ctlReg)&cmCtlBusy != 0 {
	}

	c.bus.Write32(c.divReg, cmPassword|divisor<<cmDivIntShift)
	c.bus.Write32(c.ctlReg, cmPassword|uint32(src)<<cmCtlSrcShift)
	c.bus.Write32(c.ctlReg, cmPassword|uint32(src)<<cmCtlSrcShift|cmCtlEnable)

	return nil
}

// Disable stops the clock generator.
func (c *Clock) Disable() {
	c.bus.PeripheralEntry()
	c.bus.Write32(c.ctlReg, cmPassword)
	c.bus.PeripheralExit()
}

// Enabled reports whether the generator is currently running.
func (c *Clock) Enabled() bool {
	c.bus.PeripheralEntry()
	val := c.bus.Read32(c.ctlReg)
	c.bus.PeripheralExit()
	return val&cmCtlEnable != 0
}
