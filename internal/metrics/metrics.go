// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes the node's readings and failure counts to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/climate_node/internal/env"
)

// Failure stages.
const (
	StageConnect  = "connect"
	StageTimeSync = "timesync"
	StageRead     = "read"
	StagePublish  = "publish"
)

// Recorder holds the node's collectors on their own registry.
type Recorder struct {
	registry *prometheus.Registry
	source   string

	temperature *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	cycles      prometheus.Counter
	failures    *prometheus.CounterVec
}

// New returns a Recorder labelling readings with source.
func New(source string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		source:   source,
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "climate_temperature_celsius",
			Help: "Last published temperature (units: degrees Celsius)",
		}, []string{"source", "sensor"}),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "climate_humidity_percent",
			Help: "Last published relative humidity (units: %RH)",
		}, []string{"source", "sensor"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "climate_publish_cycles_total",
			Help: "Publish cycles that sent both records.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "climate_failures_total",
			Help: "Failures by stage.",
		}, []string{"stage"}),
	}

	r.registry.MustRegister(r.temperature, r.humidity, r.cycles, r.failures)
	r.registry.MustRegister(prometheus.NewBuildInfoCollector())
	return r
}

// ObserveSample records a published reading.
func (r *Recorder) ObserveSample(s env.Sample) {
	r.temperature.WithLabelValues(r.source, s.Sensor).Set(s.Temperature)
	r.humidity.WithLabelValues(r.source, s.Sensor).Set(s.Humidity)
	r.cycles.Inc()
}

// ObserveFailure counts a failure at stage.
func (r *Recorder) ObserveFailure(stage string, _ error) {
	r.failures.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
