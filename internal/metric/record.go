// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metric builds the records published for every reading. The JSON
// form is an OpenTSDB datapoint, so the collector can forward it to
// /api/put untouched.
package metric

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/relabs-tech/climate_node/internal/env"
)

const (
	Temperature = "temperature"
	Humidity    = "humidity"
)

// Tags identify where a record comes from.
type Tags struct {
	Source string `json:"source"`
	Sensor string `json:"sensor"`
}

// Record is one timestamped, tagged scalar.
type Record struct {
	Metric    string  `json:"metric"`
	Timestamp int64   `json:"timestamp"` // Unix seconds
	Value     float64 `json:"value"`
	Tags      Tags    `json:"tags"`
}

// Offsets are calibration constants added to every raw reading.
type Offsets struct {
	Temperature float64
	Humidity    float64
}

// Apply returns s with the offsets added.
func (o Offsets) Apply(s env.Sample) env.Sample {
	s.Temperature += o.Temperature
	s.Humidity += o.Humidity
	return s
}

// FromSample builds the temperature and humidity records of one cycle.
// Both share ts.
func FromSample(s env.Sample, source string, ts int64) [2]Record {
	tags := Tags{Source: source, Sensor: s.Sensor}
	return [2]Record{
		{Metric: Temperature, Timestamp: ts, Value: s.Temperature, Tags: tags},
		{Metric: Humidity, Timestamp: ts, Value: s.Humidity, Tags: tags},
	}
}

// Marshal serializes r to its wire form.
func (r Record) Marshal() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s record", r.Metric)
	}
	return b, nil
}
