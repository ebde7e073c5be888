//go:build linux

package main

import serial "github.com/luhtfiimanal/go-serial-lines"

func openTermios(cfg serial.Config) (byteSourceCloser, error) {
	return serial.Open(cfg)
}
