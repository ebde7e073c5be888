//go:build !linux

package main

import serial "github.com/luhtfiimanal/go-serial-lines"

// termios backend is Linux only; other platforms always use go.bug.st/serial
func openTermios(cfg serial.Config) (byteSourceCloser, error) {
	return serial.OpenPortable(cfg, nil)
}
