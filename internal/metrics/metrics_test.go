// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/relabs-tech/climate_node/internal/env"
)

func TestObserveSample(t *testing.T) {
	r := New("chambre_parents")
	r.ObserveSample(env.Sample{Sensor: "SHT30", Temperature: 21.9, Humidity: 54.2})

	if got := testutil.ToFloat64(r.temperature.WithLabelValues("chambre_parents", "SHT30")); got != 21.9 {
		t.Errorf("temperature gauge = %v", got)
	}
	if got := testutil.ToFloat64(r.humidity.WithLabelValues("chambre_parents", "SHT30")); got != 54.2 {
		t.Errorf("humidity gauge = %v", got)
	}
	if got := testutil.ToFloat64(r.cycles); got != 1 {
		t.Errorf("cycles = %v", got)
	}
}

func TestObserveFailure(t *testing.T) {
	r := New("garage")
	r.ObserveFailure(StagePublish, errors.New("boom"))
	r.ObserveFailure(StagePublish, errors.New("boom"))
	r.ObserveFailure(StageTimeSync, errors.New("timeout"))

	if got := testutil.ToFloat64(r.failures.WithLabelValues(StagePublish)); got != 2 {
		t.Errorf("cycle failures = %v", got)
	}
	if got := testutil.ToFloat64(r.failures.WithLabelValues(StageTimeSync)); got != 1 {
		t.Errorf("timesync failures = %v", got)
	}
}

func TestHandlerExposesGauges(t *testing.T) {
	r := New("garage")
	r.ObserveSample(env.Sample{Sensor: "AM2320", Temperature: 12.5, Humidity: 70})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	want := `climate_temperature_celsius{sensor="AM2320",source="garage"} 12.5`
	if !strings.Contains(string(body), want) {
		t.Errorf("metrics output missing %q:\n%s", want, body)
	}
}
