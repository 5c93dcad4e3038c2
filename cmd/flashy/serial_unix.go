//go:build !windows

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// baudRates maps a requested baud rate to the termios speed constant,
// per cflashy.c's Baud2Speed table.
var baudRates = map[int]uint32{
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

// openSerial opens path and configures it for raw 8N1 I/O at baud, per
// cflashy.c's SerialOpen: ignore modem control lines, no parity, one stop
// bit, no flow control, non-canonical with immediate (non-blocking) reads.
func openSerial(path string, baud int) (*os.File, error) {
	speed, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("flashy: unsupported baud rate %d", baud)
	}

	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("flashy: cannot open %s: %w", path, err)
	}

	fd := int(f.Fd())

	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("flashy: tcgetattr failed: %w", err)
	}

	t.Cflag |= unix.CLOCAL | unix.CREAD
	t.Cflag &^= unix.CSIZE
	t.Cflag |= unix.CS8
	t.Cflag &^= unix.PARENB
	t.Cflag &^= unix.CSTOPB
	t.Cflag &^= unix.CRTSCTS

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Oflag &^= unix.OPOST

	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	t.Ispeed = speed
	t.Ospeed = speed

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("flashy: tcsetattr failed: %w", err)
	}

	return f, nil
}
