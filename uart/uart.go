// Package uart implements the BCM2835/2711 mini-UART, used as the console
// transport the logging package writes its sink to. Grounded on
// soc/bcm2835/miniuart.go's register layout and init sequence, generalized
// from a package-level register singleton into an mmio.Bus-driven type, per
// gpio's own precedent for the same transformation.
package uart

import (
	"github.com/bcm2835go/bcm2835go/gpio"
	"github.com/bcm2835go/bcm2835go/mmio"
	"github.com/bcm2835go/bcm2835go/timer"
)

// Mini-UART (AUX) register offsets, relative to the peripheral base.
const (
	auxEnables   = 0x215004
	auxMuIO      = 0x215040
	auxMuIER     = 0x215044
	auxMuIIR     = 0x215048
	auxMuLCR     = 0x21504C
	auxMuMCR     = 0x215050
	auxMuLSR     = 0x215054
	auxMuCNTLReg = 0x215060
	auxMuBaud    = 0x215068

	lsrTxEmpty = 1 << 5
	lsrRxReady = 1 << 0
)

// UART is the mini-UART console transport. It implements io.Writer so the
// logging package can use it directly as a sink.
type UART struct {
	bus mmio.Bus
}

// New binds a UART to bus and its companion GPIO lines 14/15 (alt5, per
// the grounding file's pin-mux sequence), bringing the line up at the
// given baud-rate register divisor (270 selects 115200 baud at the
// default 250MHz system clock, matching the teacher's hard-coded value).
// tick drives a 150µs settle delay after both lines' function and pull
// are set, before CNTL enables the transmitter and receiver.
func New(bus mmio.Bus, gpioBus mmio.Bus, tick timer.Ticker, baudDivisor uint32) (*UART, error) {
	u := &UART{bus: bus}

	bus.PeripheralEntry()
	bus.Write32(auxEnables, 1)
	bus.Write32(auxMuIER, 0)
	bus.Write32(auxMuCNTLReg, 0)
	bus.Write32(auxMuLCR, 3)
	bus.Write32(auxMuMCR, 0)
	bus.Write32(auxMuIER, 0)
	bus.Write32(auxMuIIR, 0xc6)
	bus.Write32(auxMuBaud, baudDivisor)
	bus.PeripheralExit()

	rx, err := gpio.NewPin(gpioBus, 14)
	if err != nil {
		return nil, err
	}
	rx.SelectFunction(gpio.FunctionAlt5)
	rx.SetPull(gpio.PullNone)

	tx, err := gpio.NewPin(gpioBus, 15)
	if err != nil {
		return nil, err
	}
	tx.SelectFunction(gpio.FunctionAlt5)
	tx.SetPull(gpio.PullNone)

	timer.USleep(tick, 150)

	bus.PeripheralEntry()
	bus.Write32(auxMuCNTLReg, 3)
	bus.PeripheralExit()

	return u, nil
}

// Tx transmits a single byte, busy-waiting for the transmit FIFO to drain.
func (u *UART) Tx(c byte) {
	for u.bus.Read32(auxMuLSR)&lsrTxEmpty == 0 {
	}
	u.bus.Write32(auxMuIO, uint32(c))
}

// Rx receives a single byte if one is pending.
func (u *UART) Rx() (c byte, valid bool) {
	if u.bus.Read32(auxMuLSR)&lsrRxReady == 0 {
		return 0, false
	}
	return byte(u.bus.Read32(auxMuIO)), true
}

// Write implements io.Writer by transmitting buf byte by byte, matching
// the grounding file's Write loop over Tx.
func (u *UART) Write(buf []byte) (int, error) {
	for _, c := range buf {
		u.Tx(c)
	}
	return len(buf), nil
}
