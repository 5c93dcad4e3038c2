package sound

import (
	"github.com/bcm2835go/bcm2835go/devsvc"
	"github.com/bcm2835go/bcm2835go/gpio"
	"github.com/bcm2835go/bcm2835go/mmio"
)

// PWM register offsets and bits, relative to a board-specific PWM base
// (ARM_PWM_BASE pre-BCM2711, ARM_PWM1_BASE on BCM2711), grounded on
// original_source/lib/sound/pwmsoundbasedevice.cpp.
const (
	pwmCtl  = 0x00
	pwmSta  = 0x04
	pwmDMAC = 0x08
	pwmRng1 = 0x10
	pwmFif1 = 0x18
	pwmRng2 = 0x20

	pwmCtlPWEN1 = 1 << 0
	pwmCtlRPTL1 = 1 << 2
	pwmCtlUSEF1 = 1 << 5
	pwmCtlMSEN1 = 1 << 7
	pwmCtlPWEN2 = 1 << 8
	pwmCtlRPTL2 = 1 << 10
	pwmCtlUSEF2 = 1 << 13
	pwmCtlMSEN2 = 1 << 15

	pwmDMACEnab        = 1 << 31
	pwmDMACPanicShift  = 8
	pwmDMACDreqShift   = 0
	pwmDMACDefaultFill = 7
)

// PWMBackend implements Backend for the PWM sound device: two
// GPIO-muxed PWM channels sharing one clock generator, using-FIFO mode
// with DMA feeding it, per RunPWM/StopPWM in
// original_source/lib/sound/pwmsoundbasedevice.cpp.
type PWMBackend struct {
	bus     mmio.Bus
	base    uint32
	clock   *gpio.Clock
	left    *gpio.Pin
	right   *gpio.Pin
	rangeN  uint32
}

// NewPWMBackend wires the PWM peripheral at base, driven by clock and
// exposed on the left/right GPIO lines (already configured to their
// alternate function by the caller, matching CGPIOPinFunction(...,
// GPIOModeAlternateFunction0) in the constructor this is grounded on).
func NewPWMBackend(bus mmio.Bus, base uint32, clock *gpio.Clock, left, right *gpio.Pin, rangeN uint32) *PWMBackend {
	b := &PWMBackend{bus: bus, base: base, clock: clock, left: left, right: right, rangeN: rangeN}
	devsvc.AddNamedDevice("sndpwm", b)
	return b
}

// Start configures both PWM channels for FIFO-driven, mark-space output
// at rangeN, and starts the clock, per RunPWM.
func (b *PWMBackend) Start(clockSource gpio.ClockSource, clockDivisor uint32) error {
	if err := b.clock.SetDivider(clockSource, clockDivisor); err != nil {
		return err
	}

	b.bus.PeripheralEntry()
	b.bus.Write32(b.base+pwmRng1, b.rangeN)
	b.bus.Write32(b.base+pwmRng2, b.rangeN)
	b.bus.Write32(b.base+pwmCtl, pwmCtlPWEN1|pwmCtlUSEF1|pwmCtlMSEN1|
		pwmCtlPWEN2|pwmCtlUSEF2|pwmCtlMSEN2)
	b.bus.PeripheralExit()

	return nil
}

// Stop disables both PWM channels and the clock.
func (b *PWMBackend) Stop() {
	b.bus.PeripheralEntry()
	b.bus.Write32(b.base+pwmCtl, 0)
	b.bus.PeripheralExit()

	b.clock.Disable()
}

// EnableDMA arms the PWM's DMA request line and clears the declick bits
// (switched on by Declick when the previous stream terminated), per the
// "switched this on when playback stops ... switch it off here" comment
// in CPWMSoundBaseDevice::Start.
func (b *PWMBackend) EnableDMA() {
	b.bus.PeripheralEntry()
	b.bus.Write32(b.base+pwmDMAC, pwmDMACEnab|
		pwmDMACDefaultFill<<pwmDMACPanicShift|pwmDMACDefaultFill<<pwmDMACDreqShift)
	b.bus.Write32(b.base+pwmCtl, b.bus.Read32(b.base+pwmCtl)&^(pwmCtlRPTL1|pwmCtlRPTL2))
	b.bus.PeripheralExit()
}

// Declick sets REPEAT_LAST on both channels so the final DMA sample
// keeps being output after the chain stops, avoiding an audible click.
func (b *PWMBackend) Declick() {
	b.bus.PeripheralEntry()
	b.bus.Write32(b.base+pwmCtl, b.bus.Read32(b.base+pwmCtl)|pwmCtlRPTL1|pwmCtlRPTL2)
	b.bus.PeripheralExit()
}

var _ Backend = (*PWMBackend)(nil)
