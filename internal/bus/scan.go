// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// First and last 7-bit addresses probed by Scan; the others are reserved.
const (
	firstAddr = 0x08
	lastAddr  = 0x77
)

// Scan probes every usable 7-bit address with a one-byte read and returns
// the addresses that acknowledged, in ascending order.
func Scan(b i2c.Bus) []uint16 {
	var found []uint16
	var buf [1]byte
	for addr := uint16(firstAddr); addr <= lastAddr; addr++ {
		if err := b.Tx(addr, nil, buf[:]); err == nil {
			found = append(found, addr)
		}
	}
	return found
}

// Open initializes periph and opens the named I²C bus ("" is the default
// bus).
func Open(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open I2C bus %q", name)
	}
	return b, nil
}
