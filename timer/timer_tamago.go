//go:build tamago

package timer

// readSysTimer is implemented in timer_tamago_arm.s, reading the BCM2835
// free-running counter registers (low/high halves of the System Timer, 1MHz).
func readSysTimer() int64
