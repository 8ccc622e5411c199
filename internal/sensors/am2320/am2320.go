// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package am2320 reads the Aosong AM2320 humidity and temperature sensor
// over I²C.
//
// The sensor sleeps between reads and ignores its address until woken, so a
// measurement is: wake, send the read command, wait, read the frame. Values
// are kept on the Dev until the next Measure.
package am2320

import (
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the fixed I²C address of the AM2320.
const DefaultAddress = 0x5C

const (
	funcReadRegisters = 0x03
	regHumidityHigh   = 0x00
	registerCount     = 4
)

var (
	// ErrCRC is returned when the frame checksum does not match.
	ErrCRC = errors.New("am2320: crc mismatch")
	// ErrFrame is returned when the sensor answers with an unexpected header.
	ErrFrame = errors.New("am2320: wrong function code")
)

// Dev is a handle to an AM2320.
type Dev struct {
	c i2c.Dev

	temperature physic.Temperature
	humidity    physic.RelativeHumidity
}

// NewI2C returns a Dev talking to the sensor at addr on b. It does not touch
// the bus.
func NewI2C(b i2c.Bus, addr uint16) *Dev {
	return &Dev{c: i2c.Dev{Bus: b, Addr: addr}}
}

func (d *Dev) String() string {
	return "AM2320{" + d.c.String() + "}"
}

// Measure wakes the sensor and reads humidity and temperature. Use
// Temperature and Humidity to retrieve the values.
func (d *Dev) Measure() error {
	// The sensor NACKs while waking up.
	_ = d.c.Tx([]byte{0x00}, nil)
	time.Sleep(time.Millisecond)

	if err := d.c.Tx([]byte{funcReadRegisters, regHumidityHigh, registerCount}, nil); err != nil {
		return errors.Wrap(err, "am2320: read command")
	}
	time.Sleep(2 * time.Millisecond)

	// func, count, 4 data bytes, crc low, crc high
	var buf [8]byte
	if err := d.c.Tx(nil, buf[:]); err != nil {
		return errors.Wrap(err, "am2320: read")
	}
	if buf[0] != funcReadRegisters || buf[1] != registerCount {
		return ErrFrame
	}
	if crc16(buf[:6]) != uint16(buf[7])<<8|uint16(buf[6]) {
		return ErrCRC
	}

	rawH := int64(buf[2])<<8 | int64(buf[3])
	rawT := int64(buf[4]&0x7F)<<8 | int64(buf[5])
	if buf[4]&0x80 != 0 {
		rawT = -rawT
	}

	d.humidity = physic.RelativeHumidity(rawH) * physic.MilliRH
	d.temperature = physic.Temperature(rawT)*100*physic.MilliCelsius + physic.ZeroCelsius
	return nil
}

// Temperature returns the temperature of the last Measure.
func (d *Dev) Temperature() physic.Temperature {
	return d.temperature
}

// Humidity returns the relative humidity of the last Measure.
func (d *Dev) Humidity() physic.RelativeHumidity {
	return d.humidity
}

// crc16 is CRC-16/MODBUS.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
