//go:build !tamago

package timer

import "time"

var hostEpoch = time.Now()

// readSysTimer emulates the 1MHz free-running counter on host builds (test
// and tooling) by scaling wall-clock elapsed time.
func readSysTimer() int64 {
	return int64(time.Since(hostEpoch).Microseconds())
}
