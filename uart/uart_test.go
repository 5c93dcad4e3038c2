package uart

import (
	"testing"

	"github.com/bcm2835go/bcm2835go/testboard"
)

func TestNewBringsUpLineAndConfiguresPins(t *testing.T) {
	bus := testboard.NewMMIOFake()
	gpioBus := testboard.NewMMIOFake()
	tick := testboard.NewTimerFake(1000000)

	u, err := New(bus, gpioBus, tick, 270)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if u == nil {
		t.Fatal("New returned nil UART")
	}

	if got := bus.Read32(auxEnables); got != 1 {
		t.Fatalf("auxEnables = %d, want 1", got)
	}
	if got := bus.Read32(auxMuLCR); got != 3 {
		t.Fatalf("auxMuLCR = %d, want 3 (8-bit mode)", got)
	}
	if got := bus.Read32(auxMuBaud); got != 270 {
		t.Fatalf("auxMuBaud = %d, want 270", got)
	}
	if got := bus.Read32(auxMuCNTLReg); got != 3 {
		t.Fatalf("auxMuCNTLReg = %d, want 3 (TX+RX enabled)", got)
	}

	// GPIO 14/15 select alt5 (value 2), packed 3 bits per line starting
	// at bit 12 (line 14) in GPFSEL1 (register base + 4).
	fsel1 := gpioBus.Read32(0x200000 + 4)
	if got := (fsel1 >> 12) & 0x7; got != uint32(2) {
		t.Fatalf("GPIO14 function = %d, want alt5 (2)", got)
	}
	if got := (fsel1 >> 15) & 0x7; got != uint32(2) {
		t.Fatalf("GPIO15 function = %d, want alt5 (2)", got)
	}
}

func TestTxWaitsForTransmitterEmpty(t *testing.T) {
	bus := testboard.NewMMIOFake()
	gpioBus := testboard.NewMMIOFake()
	tick := testboard.NewTimerFake(1000000)

	u, err := New(bus, gpioBus, tick, 270)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bus.Set(auxMuLSR, lsrTxEmpty)

	u.Tx('A')

	if got := bus.Read32(auxMuIO); got != uint32('A') {
		t.Fatalf("auxMuIO = %d, want %d", got, 'A')
	}
}

func TestWriteTransmitsEveryByte(t *testing.T) {
	bus := testboard.NewMMIOFake()
	gpioBus := testboard.NewMMIOFake()
	tick := testboard.NewTimerFake(1000000)

	u, err := New(bus, gpioBus, tick, 270)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bus.Set(auxMuLSR, lsrTxEmpty)

	var last byte
	bus.OnWrite32 = func(addr uint32, val uint32) {
		if addr == auxMuIO {
			last = byte(val)
		}
	}

	n, err := u.Write([]byte("hi"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 2 {
		t.Fatalf("Write returned n=%d, want 2", n)
	}
	if last != 'i' {
		t.Fatalf("last byte written = %q, want 'i'", last)
	}
}

func TestRxReportsNoDataWhenNotReady(t *testing.T) {
	bus := testboard.NewMMIOFake()
	gpioBus := testboard.NewMMIOFake()
	tick := testboard.NewTimerFake(1000000)

	u, err := New(bus, gpioBus, tick, 270)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, valid := u.Rx(); valid {
		t.Fatal("expected Rx to report no data available")
	}

	bus.Set(auxMuLSR, lsrRxReady)
	bus.Set(auxMuIO, 'Z')

	c, valid := u.Rx()
	if !valid {
		t.Fatal("expected Rx to report data available")
	}
	if c != 'Z' {
		t.Fatalf("Rx = %q, want 'Z'", c)
	}
}
