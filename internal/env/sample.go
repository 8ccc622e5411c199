// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import "time"

// Sample represents a single climate measurement.
type Sample struct {
	Sensor string `json:"sensor"` // "SHT30" or "AM2320"

	Temperature float64   `json:"temp_c"`   // °C
	Humidity    float64   `json:"humidity"` // %RH
	Time        time.Time `json:"time"`
}
