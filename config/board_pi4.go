//go:build board_pi4

package config

// Pi 4 (BCM2711) remaps peripherals to 0xfe000000 in low-peripheral mode.
const (
	boardName      = "pi4"
	peripheralBase = 0xfe000000
	sysTimerFreq   = 1000000
)
