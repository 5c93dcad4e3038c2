//go:build board_pi0

package config

// Pi Zero uses the BCM2835, whose peripherals sit at the SoC's native
// 0x20000000 physical base (no VideoCore remapping), per
// soc/bcm2835.go's PeripheralBase doc comment.
const (
	boardName      = "pi0"
	peripheralBase = 0x20000000
	sysTimerFreq   = 1000000
)
