package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out *os.File) int {
	fs := flag.NewFlagSet("flashy", flag.ContinueOnError)
	flashBaud := fs.Int("flashbaud", 115200, "baud rate for flashing")
	userBaud := fs.Int("userbaud", 115200, "baud rate for monitor and reboot magic")
	rebootMagic := fs.String("reboot", "", "magic reboot string sent at user baud before flashing")
	rebootDelay := fs.Int("rebootdelay", 1000, "delay in ms after sending reboot magic")
	goDelay := fs.Int("godelay", 0, "delay in ms for the go command")
	packetSize := fs.Int("packetsize", 0, "upload chunk size in bytes")
	monitor := fs.Bool("monitor", false, "monitor serial port input to stderr")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(out, "usage: flashy <serial-port> [<hexfile>] [flags]")
		return 1
	}

	opts := DefaultOptions()
	opts.FlashBaud = *flashBaud
	opts.UserBaud = *userBaud
	opts.RebootMagic = *rebootMagic
	opts.RebootDelay = time.Duration(*rebootDelay) * time.Millisecond
	opts.GoDelay = time.Duration(*goDelay) * time.Millisecond
	opts.PacketSize = *packetSize
	opts.Monitor = *monitor

	port := rest[0]
	if len(rest) > 1 {
		opts.HexFile = rest[1]
	}

	if opts.RebootMagic != "" {
		f, err := openSerial(port, opts.UserBaud)
		if err != nil {
			fmt.Fprintln(out, err)
			return 1
		}
		if err := Reboot(f, opts); err != nil {
			f.Close()
			fmt.Fprintln(out, err)
			return 1
		}
		f.Close()
		time.Sleep(opts.RebootDelay)
	}

	f, err := openSerial(port, opts.FlashBaud)
	if err != nil {
		fmt.Fprintln(out, err)
		return 1
	}
	defer f.Close()

	var hex io.Reader
	var progress io.Writer
	if opts.HexFile != "" {
		hexFile, err := os.Open(opts.HexFile)
		if err != nil {
			fmt.Fprintln(out, err)
			return 1
		}
		defer hexFile.Close()
		hex = hexFile
		progress = out
	}

	if err := Flash(f, hex, opts, progress); err != nil {
		fmt.Fprintln(out, err)
		return 1
	}

	name := "Device"
	if opts.HexFile != "" {
		name = opts.HexFile
	}
	fmt.Fprintf(out, "%s successfully started\n", name)

	return 0
}
