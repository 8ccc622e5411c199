// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/climate_node/internal/bus"
	"github.com/relabs-tech/climate_node/internal/env"
	"github.com/relabs-tech/climate_node/internal/sensors/am2320"
	"github.com/relabs-tech/climate_node/internal/sensors/sht30"
)

// ErrUnsupportedDevice is returned by New for an address no driver handles.
var ErrUnsupportedDevice = errors.New("sensor not supported")

// Sensor measures once and returns temperature and humidity, whichever
// device sits behind it.
type Sensor interface {
	Name() string
	Read() (env.Sample, error)
}

// New builds the Sensor for the detected identity.
func New(id bus.Identity, b i2c.Bus) (Sensor, error) {
	switch id.Addr {
	case bus.SHT30.Addr:
		return &sht30Sensor{name: bus.SHT30.Name, dev: sht30.NewI2C(b, id.Addr)}, nil
	case bus.AM2320.Addr:
		return &am2320Sensor{name: bus.AM2320.Name, dev: am2320.NewI2C(b, id.Addr)}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedDevice, "address 0x%02X", id.Addr)
	}
}

type sht30Sensor struct {
	name string
	dev  *sht30.Dev
}

func (s *sht30Sensor) Name() string { return s.name }

func (s *sht30Sensor) Read() (env.Sample, error) {
	t, h, err := s.dev.Measure()
	if err != nil {
		return env.Sample{}, err
	}
	return sample(s.name, t, h), nil
}

type am2320Sensor struct {
	name string
	dev  *am2320.Dev
}

func (s *am2320Sensor) Name() string { return s.name }

func (s *am2320Sensor) Read() (env.Sample, error) {
	if err := s.dev.Measure(); err != nil {
		return env.Sample{}, err
	}
	return sample(s.name, s.dev.Temperature(), s.dev.Humidity()), nil
}

func sample(name string, t physic.Temperature, h physic.RelativeHumidity) env.Sample {
	return env.Sample{
		Sensor:      name,
		Temperature: t.Celsius(),
		Humidity:    float64(h) / float64(physic.PercentRH),
	}
}
