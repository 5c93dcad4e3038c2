//go:build windows

package main

import (
	"fmt"
	"os"
)

// openSerial is not implemented on Windows in this port; cflashy.c's
// Windows branch uses CreateFile/DCB, which has no equivalent in
// golang.org/x/sys/unix. A Windows build should use a COM-port aware
// library instead.
func openSerial(path string, baud int) (*os.File, error) {
	return nil, fmt.Errorf("flashy: serial port access is not implemented on windows")
}
