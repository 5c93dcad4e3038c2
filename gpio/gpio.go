// Package gpio implements pin multiplexing, pull configuration, and output
// drive for the SoC's general-purpose I/O lines, used by the sound and DMA
// peripheral init paths to route PWM/I2S/PCM signals onto package pins.
//
// Grounded on soc/bcm2835/gpio.go, generalized from a package-level
// register singleton into an mmio.Bus-driven type so it can be exercised
// against testboard.MMIOFake, and with pull configuration added (the
// teacher only implements function-select and level).
package gpio

import (
	"fmt"

	"github.com/bcm2835go/bcm2835go/mmio"
)

const (
	gpfsel0 = 0x200000
	gpset0  = 0x20001C
	gpclr0  = 0x200028
	gplev0  = 0x200034

	// Legacy (BCM2835/2836/2837) pull-up/down control: a shared
	// GPPUD register followed by a per-bank clock-enable pulse.
	gppud    = 0x200094
	gppudclk = 0x200098

	maxLine = 53
)

// Function selects a pin's mode.
type Function uint32

const (
	FunctionInput Function = 0
	FunctionOutput Function = 1
	FunctionAlt0   Function = 4
	FunctionAlt1   Function = 5
	FunctionAlt2   Function = 6
	FunctionAlt3   Function = 7
	FunctionAlt4   Function = 3
	FunctionAlt5   Function = 2
)

// Pull selects a pin's internal pull resistor.
type Pull uint32

const (
	PullNone Pull = 0
	PullDown Pull = 1
	PullUp   Pull = 2
)

// Pin is a single GPIO line.
type Pin struct {
	bus mmio.Bus
	num int
}

// NewPin binds a GPIO line number (0-53) to bus.
func NewPin(bus mmio.Bus, num int) (*Pin, error) {
	if num < 0 || num > maxLine {
		return nil, fmt.Errorf("gpio: invalid line %d", num)
	}

	return &Pin{bus: bus, num: num}, nil
}

// Out configures the pin as output.
func (p *Pin) Out() { p.SelectFunction(FunctionOutput) }

// In configures the pin as input.
func (p *Pin) In() { p.SelectFunction(FunctionInput) }

// SelectFunction sets the pin's multiplexed function.
func (p *Pin) SelectFunction(fn Function) {
	reg := uint32(gpfsel0 + 4*uint32(p.num/10))
	shift := uint32((p.num % 10) * 3)
	mask := uint32(0x7) << shift

	p.bus.PeripheralEntry()
	val := p.bus.Read32(reg)
	val = val&^mask | (uint32(fn)<<shift)&mask
	p.bus.Write32(reg, val)
	p.bus.PeripheralExit()
}

// Function returns the pin's currently selected function.
func (p *Pin) Function() Function {
	reg := uint32(gpfsel0 + 4*uint32(p.num/10))
	shift := uint32((p.num % 10) * 3)

	p.bus.PeripheralEntry()
	val := p.bus.Read32(reg)
	p.bus.PeripheralExit()

	return Function((val >> shift) & 0x7)
}

// SetPull configures the pin's internal pull resistor using the legacy
// GPPUD/GPPUDCLK sequence: write the desired pull mode, pulse the clock
// for the target bank, then clear both, per the BCM2835 ARM peripherals
// datasheet's documented procedure (the teacher does not implement pull
// at all; this follows the same two-step register dance its GPIO package
// uses for function-select).
func (p *Pin) SetPull(pull Pull) {
	bank := uint32(p.num / 32)
	shift := uint32(p.num % 32)

	p.bus.PeripheralEntry()
	p.bus.Write32(gppud, uint32(pull))
	p.bus.Write32(gppudclk+4*bank, 1<<shift)
	p.bus.Write32(gppud, 0)
	p.bus.Write32(gppudclk+4*bank, 0)
	p.bus.PeripheralExit()
}

// High drives the pin high.
func (p *Pin) High() {
	reg := uint32(gpset0 + 4*uint32(p.num/32))
	p.bus.PeripheralEntry()
	p.bus.Write32(reg, 1<<uint(p.num%32))
	p.bus.PeripheralExit()
}

// Low drives the pin low.
func (p *Pin) Low() {
	reg := uint32(gpclr0 + 4*uint32(p.num/32))
	p.bus.PeripheralEntry()
	p.bus.Write32(reg, 1<<uint(p.num%32))
	p.bus.PeripheralExit()
}

// Value reads the pin's current level.
func (p *Pin) Value() bool {
	reg := uint32(gplev0 + 4*uint32(p.num/32))

	p.bus.PeripheralEntry()
	val := p.bus.Read32(reg)
	p.bus.PeripheralExit()

	return (val>>uint(p.num%32))&1 != 0
}
