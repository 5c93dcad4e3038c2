// Package timer exposes the free-running counter used throughout the
// module for microsecond delays and USB/DMA deadline tracking, grounded on
// soc/bcm2835/timer.go's read_systimer and spec.md §5's "ticks of the
// free-running timer" model.
package timer

import "time"

// Ticker is the free-running tick source. The real implementation reads
// the BCM2835 System Timer counter (1MHz, see config.BoardConfig.SysTimerFreq);
// tests use testboard.TimerFake, which advances on demand.
type Ticker interface {
	// Ticks returns the current free-running counter value.
	Ticks() uint64

	// Frequency returns the counter's tick rate in Hz.
	Frequency() uint64
}

// Now converts a Ticker's current count to a time.Duration since an
// arbitrary epoch, for deadline arithmetic shared by dwhci's stage-data
// timeouts and the sound back end's microsecond delays.
func Now(t Ticker) time.Duration {
	freq := t.Frequency()
	if freq == 0 {
		return 0
	}
	return time.Duration(t.Ticks()) * time.Second / time.Duration(freq)
}

// Deadline computes the absolute tick count corresponding to now + d.
func Deadline(t Ticker, d time.Duration) uint64 {
	freq := t.Frequency()
	elapsedTicks := uint64(d) * freq / uint64(time.Second)
	return t.Ticks() + elapsedTicks
}

// Expired reports whether the free-running counter has reached deadline.
func Expired(t Ticker, deadline uint64) bool {
	return t.Ticks() >= deadline
}

// USleep busy-waits for approximately d microseconds of Ticker time,
// mirroring CTimer::SimpleusDelay/usDelay's role in the I2S/PWM back
// ends' documented register-sequencing delays.
func USleep(t Ticker, d uint64) {
	deadline := Deadline(t, time.Duration(d)*time.Microsecond)
	for !Expired(t, deadline) {
	}
}

// hardware is the real Ticker, backed by the BCM2835 system timer.
type hardware struct{}

// NewHardwareTicker returns the Ticker reading the BCM2835 free-running
// 1MHz system timer. Must only be used with GOOS=tamago.
func NewHardwareTicker() Ticker {
	return hardware{}
}

func (hardware) Ticks() uint64     { return uint64(readSysTimer()) }
func (hardware) Frequency() uint64 { return sysTimerFreq }

const sysTimerFreq = 1000000
