// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sht30 reads the Sensirion SHT30 humidity and temperature sensor
// over I²C.
//
// Datasheet:
// https://sensirion.com/media/documents/213E6A3B/63A5A569/Datasheet_SHT3x_DIS.pdf
package sht30

import (
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the address with ADDR pulled low.
const DefaultAddress = 0x44

// Single shot, high repeatability, no clock stretching.
var cmdMeasureHigh = []byte{0x24, 0x00}

// conversionTime is the worst-case high repeatability measurement duration.
const conversionTime = 16 * time.Millisecond

// ErrCRC is returned when a word read back fails its checksum.
var ErrCRC = errors.New("sht30: crc mismatch")

// Dev is a handle to an SHT30.
type Dev struct {
	c i2c.Dev
}

// NewI2C returns a Dev talking to the sensor at addr on b. It does not touch
// the bus.
func NewI2C(b i2c.Bus, addr uint16) *Dev {
	return &Dev{c: i2c.Dev{Bus: b, Addr: addr}}
}

func (d *Dev) String() string {
	return "SHT30{" + d.c.String() + "}"
}

// Measure triggers a single shot conversion and returns both values.
func (d *Dev) Measure() (physic.Temperature, physic.RelativeHumidity, error) {
	if err := d.c.Tx(cmdMeasureHigh, nil); err != nil {
		return 0, 0, errors.Wrap(err, "sht30: trigger")
	}
	time.Sleep(conversionTime)

	var buf [6]byte
	if err := d.c.Tx(nil, buf[:]); err != nil {
		return 0, 0, errors.Wrap(err, "sht30: read")
	}
	if crc8(buf[0:2]) != buf[2] || crc8(buf[3:5]) != buf[5] {
		return 0, 0, ErrCRC
	}

	rawT := int64(buf[0])<<8 | int64(buf[1])
	rawH := int64(buf[3])<<8 | int64(buf[4])

	// T = -45 + 175 * raw / (2^16 - 1)
	t := physic.Temperature(rawT*175*int64(physic.Celsius)/65535) - 45*physic.Celsius + physic.ZeroCelsius
	// RH = 100 * raw / (2^16 - 1)
	h := physic.RelativeHumidity(rawH * 100 * int64(physic.PercentRH) / 65535)
	return t, h, nil
}

// crc8 is CRC-8 with polynomial 0x31 and initial value 0xFF.
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
