//go:build !board_pi0 && !board_pi4

package config

// Pi2/Pi3 (BCM2836/2837) remap peripherals to 0x3f000000; this is also the
// default board when no board_pi0/board_pi4 build tag is given, since it
// is the most common target in the retrieved snapshot's board/raspberrypi
// tree.
const (
	boardName      = "pi3"
	peripheralBase = 0x3f000000
	sysTimerFreq   = 1000000
)
