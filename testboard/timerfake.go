package testboard

// TimerFake is a manually-advanced Ticker for deterministic timeout tests
// (e.g. dwhci interrupt-URB timeouts, DMA wait() polling).
type TimerFake struct {
	ticks uint64
	freq  uint64
}

// NewTimerFake returns a fake ticker starting at zero with the given
// frequency in Hz.
func NewTimerFake(freqHz uint64) *TimerFake {
	return &TimerFake{freq: freqHz}
}

func (f *TimerFake) Ticks() uint64     { return f.ticks }
func (f *TimerFake) Frequency() uint64 { return f.freq }

// Advance moves the fake clock forward by n ticks.
func (f *TimerFake) Advance(n uint64) { f.ticks += n }
