// Package sound implements the output pipeline of spec.md §4.3: a write
// queue with inline format conversion feeding a double-buffered DMA chain,
// and the shared Idle/Running/Cancelled/Terminating/Error state machine
// that drives it.
//
// Grounded on original_source/lib/sound/pwmsoundbasedevice.cpp (Start,
// GetNextChunk, InterruptHandler) and lib/i2ssoundbasedevice.cpp, whose
// sequencing the generic Device below follows step for step; the teacher
// package implements no sound devices at all, so the DMA wiring reuses
// this repository's own dma package (dma.Channel.RefillCyclicBuffer /
// StopChainAfterCurrent) rather than a teacher driver.
package sound

import (
	"fmt"
	"sync"

	"github.com/bcm2835go/bcm2835go/dma"
)

// State is the back end's playback state, per spec.md §4.3.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCancelled
	StateTerminating
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelled:
		return "cancelled"
	case StateTerminating:
		return "terminating"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ChunkProvider supplies hardware-format sample data one chunk at a time.
// It is satisfied by *Queue, or may be implemented directly by a caller
// that overrides chunk generation instead of using Write.
type ChunkProvider interface {
	// GetChunk fills buf (a hardware-format sample buffer) and returns
	// the number of bytes written. Returning 0 signals end of stream.
	GetChunk(buf []byte) int
}

// Backend supplies the peripheral-specific parts of starting, stopping,
// and terminating a transfer: PWM's REPEAT_LAST declick and I2S's FIFO
// reset live here, outside the shared state machine.
type Backend interface {
	// EnableDMA arms the peripheral's DMA request line and clears any
	// declick bit left over from a previous Terminating transition.
	EnableDMA()
	// Declick sets the peripheral's "repeat last sample" (or
	// equivalent) bit so the final DMA buffer's last frame continues
	// to be presented after the chain stops, avoiding an audible
	// transition to silence.
	Declick()
}

// Device drives one double-buffered DMA output channel through the
// Idle/Running/Cancelled/Terminating/Error state machine of spec.md
// §4.3. PWM and I2S back ends embed a Device and supply a Backend plus
// the register/GPIO setup spec.md §4.3's "PWM/I2S peripheral quirks"
// paragraph describes.
type Device struct {
	mu sync.Mutex

	channel   *dma.Channel
	backend   Backend
	ioAddress uint32
	dreq      int

	chunkBytes int
	bufAddrs   [2]uint32
	provider   ChunkProvider

	state      State
	nextBuffer int

	irqLine int
}

// Config bundles a Device's fixed wiring.
type Config struct {
	Channel    *dma.Channel
	Backend    Backend
	IOAddress  uint32
	DREQ       int
	ChunkBytes int
	// BufferAddrs are two coherent-memory addresses, each at least
	// ChunkBytes long, used as the double-buffered DMA source.
	BufferAddrs [2]uint32
	Provider    ChunkProvider
}

// NewDevice constructs a Device and attaches its completion routine. The
// device starts Idle; call Start to begin playback.
func NewDevice(cfg Config) (*Device, error) {
	d := &Device{
		channel:    cfg.Channel,
		backend:    cfg.Backend,
		ioAddress:  cfg.IOAddress,
		dreq:       cfg.DREQ,
		chunkBytes: cfg.ChunkBytes,
		bufAddrs:   cfg.BufferAddrs,
		provider:   cfg.Provider,
		state:      StateIdle,
	}

	if err := d.channel.SetCompletionRoutine(d.onCompletion, nil); err != nil {
		return nil, fmt.Errorf("sound: attaching completion routine: %w", err)
	}

	// Wire the permanent two-buffer chain once, per spec.md §4.3; Start
	// and the completion routine only ever rewrite a slot's source
	// address (RefillCyclicBuffer) or stop the chain after the current
	// block (StopChainAfterCurrent), matching SetupDMAControlBlock's
	// one-time concatenation in pwmsoundbasedevice.cpp's constructor.
	if err := d.channel.SetupCyclicIOWrite(cfg.IOAddress, cfg.BufferAddrs[:], cfg.ChunkBytes, cfg.DREQ); err != nil {
		return nil, fmt.Errorf("sound: wiring DMA chain: %w", err)
	}

	return d, nil
}

// State returns the device's current playback state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsActive reports whether the device is doing anything other than
// sitting Idle.
func (d *Device) IsActive() bool {
	return d.State() != StateIdle
}

// Start fills buffer 0 from the chunk provider, starts the DMA chain, and
// fills buffer 1, per spec.md §4.3's Start sequence. If buffer 1's fill
// signals end of stream, the chain is broken immediately and the device
// goes straight to Terminating.
func (d *Device) Start() error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return fmt.Errorf("sound: Start called while not idle (state %v)", d.state)
	}
	d.mu.Unlock()

	d.nextBuffer = 0

	if !d.fillNextBuffer() {
		return fmt.Errorf("sound: chunk provider returned no data for buffer 0")
	}

	d.mu.Lock()
	d.state = StateRunning
	d.mu.Unlock()

	d.backend.EnableDMA()
	d.channel.Start()

	if !d.fillNextBuffer() {
		d.mu.Lock()
		if d.state == StateRunning {
			d.channel.StopChainAfterCurrent()
			d.state = StateTerminating
		}
		d.mu.Unlock()
	}

	return nil
}

// Cancel requests the transfer stop after the in-flight buffers drain.
func (d *Device) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateRunning {
		d.state = StateCancelled
	}
}

// fillNextBuffer asks the chunk provider for data into the next slot in
// the two-buffer rotation, rewrites that slot's DMA source buffer (the
// buffer's control block chain is wired once and never reprogrammed),
// and advances the rotation. It reports whether data was produced.
func (d *Device) fillNextBuffer() bool {
	idx := d.nextBuffer
	addr := d.bufAddrs[idx]

	view := d.channel.BufferView(addr, d.chunkBytes)

	n := d.provider.GetChunk(view)
	if n == 0 {
		return false
	}

	d.channel.RefillCyclicBuffer(idx, addr)

	d.nextBuffer ^= 1

	return true
}

// onCompletion is the DMA channel's completion routine, grounded on
// PWMSoundBaseDevice::InterruptHandler's state-machine switch.
func (d *Device) onCompletion(channel int, bufferIndex int, success bool, param interface{}) {
	if !success {
		d.mu.Lock()
		d.state = StateError
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	state := d.state
	d.mu.Unlock()

	switch state {
	case StateRunning:
		if d.fillNextBuffer() {
			return
		}
		fallthrough

	case StateCancelled:
		d.channel.StopChainAfterCurrent()
		d.backend.Declick()

		d.mu.Lock()
		d.state = StateTerminating
		d.mu.Unlock()

	case StateTerminating:
		d.mu.Lock()
		d.state = StateIdle
		d.mu.Unlock()
	}
}
