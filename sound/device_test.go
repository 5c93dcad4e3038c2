package sound

import (
	"testing"

	"github.com/bcm2835go/bcm2835go/coherent"
	"github.com/bcm2835go/bcm2835go/dma"
	"github.com/bcm2835go/bcm2835go/irq"
	"github.com/bcm2835go/bcm2835go/testboard"
)

type fakeBackend struct {
	enabled  bool
	declicks int
}

func (b *fakeBackend) EnableDMA() { b.enabled = true }
func (b *fakeBackend) Declick()   { b.declicks++ }

// squareWave is a ChunkProvider emitting a fixed-frequency square wave,
// matching spec.md §8 scenario 1's "get_chunk returning a 1kHz square
// wave", and tracking how many chunks it has produced.
type squareWave struct {
	calls int
	stop  int // after this many calls, report end of stream (0 = never)
}

func (s *squareWave) GetChunk(buf []byte) int {
	s.calls++
	if s.stop != 0 && s.calls > s.stop {
		return 0
	}

	for i := range buf {
		if (i/4)%2 == 0 {
			buf[i] = 0xFF
		} else {
			buf[i] = 0x00
		}
	}

	return len(buf)
}

func newTestChannel(t *testing.T) (*dma.Channel, *testboard.MMIOFake) {
	t.Helper()

	bus := testboard.NewMMIOFake()
	cache := &testboard.CacheFake{}

	e := dma.NewEngine(dma.Config{
		Bus:            bus,
		Cache:          cache,
		Region:         coherent.NewFakeRegion(256 * 1024),
		IRQ:            irq.NewController(),
		PeripheralBase: 0x3F000000,
		DMAEnableReg:   0x3FFFFE00,
		IntStatusReg:   0x3FFFFE04,
		DMAIRQBase:     16,
		AvailableMask:  0xFFFF,
	})

	ch, err := e.NewChannel(dma.ClassNormal, -1)
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}

	return ch, bus
}

func newTestDevice(t *testing.T, ch *dma.Channel, backend Backend, provider ChunkProvider, chunkBytes int) *Device {
	t.Helper()

	bufA, err := ch.AllocBuffer(chunkBytes)
	if err != nil {
		t.Fatalf("AllocBuffer A: %v", err)
	}
	bufB, err := ch.AllocBuffer(chunkBytes)
	if err != nil {
		t.Fatalf("AllocBuffer B: %v", err)
	}

	d, err := NewDevice(Config{
		Channel:     ch,
		Backend:     backend,
		IOAddress:   0x203000,
		DREQ:        5,
		ChunkBytes:  chunkBytes,
		BufferAddrs: [2]uint32{bufA, bufB},
		Provider:    provider,
	})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}

	return d
}

// simulateCompletion seeds the channel's CS register with a clean
// (non-error) completed state and dispatches its IRQ line, as a test
// fake hardware controller would per spec.md §8 scenario 2.
func simulateCompletion(ch *dma.Channel, bus *testboard.MMIOFake) {
	bus.Set(ch.StatusRegisterAddr(), 1<<2) // CS_INT, no CS_ERROR
	ch.Engine().Dispatch(ch.IRQLine())
}

// TestDeviceStartFillsTwoBuffers covers spec.md §8 scenario 1: after
// Start, both DMA buffers have been filled by the chunk provider before
// any interrupt fires.
func TestDeviceStartFillsTwoBuffers(t *testing.T) {
	ch, _ := newTestChannel(t)
	backend := &fakeBackend{}
	provider := &squareWave{}

	d := newTestDevice(t, ch, backend, provider, 2048*4)

	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if provider.calls != 2 {
		t.Fatalf("expected 2 chunk fills after Start, got %d", provider.calls)
	}

	if d.State() != StateRunning {
		t.Fatalf("expected Running after Start, got %v", d.State())
	}

	if !backend.enabled {
		t.Fatal("expected backend.EnableDMA to have been called")
	}
}

// TestDeviceIRQRefillsNextBuffer covers the rest of scenario 1: the next
// IRQ triggers a refill of the buffer that just completed, and the
// device stays Running.
func TestDeviceIRQRefillsNextBuffer(t *testing.T) {
	ch, bus := newTestChannel(t)
	backend := &fakeBackend{}
	provider := &squareWave{}

	d := newTestDevice(t, ch, backend, provider, 256)

	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	callsBefore := provider.calls

	simulateCompletion(ch, bus)

	if provider.calls != callsBefore+1 {
		t.Fatalf("expected IRQ to trigger one more chunk fill, got %d new calls", provider.calls-callsBefore)
	}

	if d.State() != StateRunning {
		t.Fatalf("expected state to remain Running after refill, got %v", d.State())
	}
}

// TestDeviceEndOfStreamTerminates exercises the Cancelled/Terminating/
// Idle tail of the state machine: the chunk provider reports end of
// stream, and two more IRQs walk the device back to Idle.
func TestDeviceEndOfStreamTerminates(t *testing.T) {
	ch, bus := newTestChannel(t)
	backend := &fakeBackend{}
	provider := &squareWave{stop: 2} // buffer 0 and 1 fill, then EOF

	d := newTestDevice(t, ch, backend, provider, 256)

	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if d.State() != StateRunning {
		t.Fatalf("expected Running after Start, got %v", d.State())
	}

	// Buffer 0 completes: GetChunk (call 3) reports EOF, so the device
	// breaks the chain and declicks.
	simulateCompletion(ch, bus)
	if d.State() != StateTerminating {
		t.Fatalf("expected Terminating after EOF, got %v", d.State())
	}
	if backend.declicks != 1 {
		t.Fatalf("expected Declick to be called once, got %d", backend.declicks)
	}

	// Buffer 1 (the last one programmed) completes: Terminating -> Idle.
	simulateCompletion(ch, bus)
	if d.State() != StateIdle {
		t.Fatalf("expected Idle after terminating completion, got %v", d.State())
	}
}
