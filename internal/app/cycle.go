// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/climate_node/internal/env"
	"github.com/relabs-tech/climate_node/internal/metric"
	"github.com/relabs-tech/climate_node/internal/metrics"
)

// cycleError carries the stage a guarded-region failure happened in.
type cycleError struct {
	stage string
	err   error
}

func (e *cycleError) Error() string { return e.err.Error() }

func (e *cycleError) Unwrap() error { return e.err }

// RunCycle runs one cycle and reports whether the station was connected at
// its start. A disconnected cycle only attempts to reconnect. Failures are
// logged and never returned.
func (n *Node) RunCycle(ctx context.Context) bool {
	if !n.Session.Ensure(ctx) {
		n.failure(metrics.StageConnect, errors.New("station not connected"))
		return false
	}

	if err := n.TimeSync.Sync(); err != nil {
		log.Warnf("app: time out while syncing time: %v", err)
		n.failure(metrics.StageTimeSync, err)
	}

	s, err := n.measureAndPublish()
	if err != nil {
		log.Errorf("Error in %s: %v", n.Sensor.Name(), err)
		stage := metrics.StagePublish
		var ce *cycleError
		if errors.As(err, &ce) {
			stage = ce.stage
		}
		n.failure(stage, err)
		return true
	}

	n.sample(s)
	return true
}

// measureAndPublish is the fault-guarded region of a cycle.
func (n *Node) measureAndPublish() (published env.Sample, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &cycleError{stage: metrics.StageRead, err: errors.Errorf("panic: %v", r)}
		}
	}()

	raw, err := n.Sensor.Read()
	if err != nil {
		return env.Sample{}, &cycleError{stage: metrics.StageRead, err: err}
	}

	s := n.Settings.Offsets.Apply(raw)
	s.Time = n.Clock.Now()
	ts := s.Time.Unix()
	log.Infof("Temperature %6s: %.1fºC, RH: %.1f%%", s.Sensor, s.Temperature, s.Humidity)

	records := metric.FromSample(s, n.Settings.Source, ts)
	payloads := make([][]byte, 0, len(records))
	for _, r := range records {
		b, err := r.Marshal()
		if err != nil {
			return env.Sample{}, &cycleError{stage: metrics.StagePublish, err: err}
		}
		log.Info(string(b))
		payloads = append(payloads, b)
	}

	client := n.Dial(n.Settings.MQTTClientID, n.Settings.MQTTBroker)
	if err := client.Connect(); err != nil {
		return env.Sample{}, &cycleError{stage: metrics.StagePublish, err: err}
	}
	defer client.Disconnect()

	for _, p := range payloads {
		if err := client.Publish(n.Settings.MQTTTopic, p); err != nil {
			return env.Sample{}, &cycleError{stage: metrics.StagePublish, err: err}
		}
	}
	return s, nil
}
