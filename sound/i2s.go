package sound

import (
	"github.com/bcm2835go/bcm2835go/devsvc"
	"github.com/bcm2835go/bcm2835go/gpio"
	"github.com/bcm2835go/bcm2835go/mmio"
	"github.com/bcm2835go/bcm2835go/timer"
)

// PCM (I2S) register offsets and bits, relative to a board's PCM base,
// grounded on original_source/lib/i2ssoundbasedevice.cpp.
const (
	pcmCSA   = 0x00
	pcmModeA = 0x08
	pcmTxCA  = 0x0C

	csASTBY = 1 << 25
	csATXE  = 1 << 21
	csARXClr = 1 << 4
	csATXClr = 1 << 3
	csATXOn  = 1 << 2
	csAEn    = 1 << 0

	modeAClkI = 1 << 22
	modeAClkM = 1 << 23
	modeAFSI  = 1 << 20
	modeAFSM  = 1 << 21
	modeAFLenShift  = 10
	modeAFSLenShift = 0

	txCACh1WEX = 1 << 31
	txCACh1En  = 1 << 30
	txCACh1PosShift = 20
	txCACh2WEX = 1 << 15
	txCACh2En  = 1 << 14
	txCACh2PosShift = 4

	i2sChannels  = 2
	i2sChanLen   = 32
)

// I2SBackend implements Backend for the I2S sound device: clear both
// FIFOs, program both channel slot positions, optionally configure clock
// and frame sync as inputs (slave mode), and sequence the documented
// microsecond delays between each step, per RunI2S/StopI2S.
type I2SBackend struct {
	bus   mmio.Bus
	base  uint32
	clock *gpio.Clock
	tick  timer.Ticker
	slave bool
}

// NewI2SBackend wires the PCM/I2S peripheral at base.
func NewI2SBackend(bus mmio.Bus, base uint32, clock *gpio.Clock, tick timer.Ticker, slave bool) *I2SBackend {
	b := &I2SBackend{bus: bus, base: base, clock: clock, tick: tick, slave: slave}
	devsvc.AddNamedDevice("sndi2s", b)
	return b
}

// Start runs RunI2S's register sequence: disable, clear FIFOs, program
// channel slots and frame mode, disable standby, enable, enable TX.
func (b *I2SBackend) Start(clockSource gpio.ClockSource, clockDivisor uint32) error {
	if !b.slave {
		if err := b.clock.SetDivider(clockSource, clockDivisor); err != nil {
			return err
		}
	}

	bus := b.bus
	base := b.base

	bus.PeripheralEntry()
	bus.Write32(base+pcmCSA, 0)
	bus.PeripheralExit()
	timer.USleep(b.tick, 10)

	bus.PeripheralEntry()
	bus.Write32(base+pcmCSA, bus.Read32(base+pcmCSA)|csATXClr|csARXClr)
	bus.PeripheralExit()
	timer.USleep(b.tick, 10)

	bus.PeripheralEntry()
	bus.Write32(base+pcmTxCA, txCACh1WEX|txCACh1En|(1<<txCACh1PosShift)|
		txCACh2WEX|txCACh2En|((i2sChanLen+1)<<txCACh2PosShift))

	modeA := uint32(modeAClkI | modeAFSI |
		(i2sChannels*i2sChanLen-1)<<modeAFLenShift | i2sChanLen<<modeAFSLenShift)
	if b.slave {
		modeA |= modeAClkM | modeAFSM
	}
	bus.Write32(base+pcmModeA, modeA)
	bus.PeripheralExit()

	bus.PeripheralEntry()
	bus.Write32(base+pcmCSA, bus.Read32(base+pcmCSA)|csASTBY)
	bus.PeripheralExit()
	timer.USleep(b.tick, 50)

	bus.PeripheralEntry()
	bus.Write32(base+pcmCSA, bus.Read32(base+pcmCSA)|csAEn)
	bus.PeripheralExit()
	timer.USleep(b.tick, 10)

	bus.PeripheralEntry()
	bus.Write32(base+pcmCSA, bus.Read32(base+pcmCSA)|csATXOn)
	bus.PeripheralExit()
	timer.USleep(b.tick, 10)

	return nil
}

// Stop disables the PCM peripheral and its clock, per StopI2S.
func (b *I2SBackend) Stop() {
	b.bus.PeripheralEntry()
	b.bus.Write32(b.base+pcmCSA, 0)
	b.bus.PeripheralExit()
	timer.USleep(b.tick, 50)

	if !b.slave {
		b.clock.Disable()
	}
}

// EnableDMA asserts the PCM TX DMA request enable bit.
func (b *I2SBackend) EnableDMA() {
	b.bus.PeripheralEntry()
	b.bus.Write32(b.base+pcmCSA, b.bus.Read32(b.base+pcmCSA)|csADMAEn)
	b.bus.PeripheralExit()
}

// Declick is a no-op for I2S: unlike PWM's mark-space output, stopping
// the bit clock does not produce an audible transition.
func (b *I2SBackend) Declick() {}

const csADMAEn = 1 << 9

var _ Backend = (*I2SBackend)(nil)
