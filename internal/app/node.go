// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/climate_node/internal/bus"
	"github.com/relabs-tech/climate_node/internal/config"
	"github.com/relabs-tech/climate_node/internal/env"
	"github.com/relabs-tech/climate_node/internal/network"
	"github.com/relabs-tech/climate_node/internal/sensors"
	"github.com/relabs-tech/climate_node/internal/transport"
)

// Observer is told about every published reading and every failure.
type Observer interface {
	ObserveSample(s env.Sample)
	ObserveFailure(stage string, err error)
}

// TimeSyncer steps the wall clock from a time server.
type TimeSyncer interface {
	Sync() error
}

// Node is the measure and publish loop of one climate node.
type Node struct {
	Settings  *config.Settings
	Sensor    sensors.Sensor
	Session   *network.Session
	TimeSync  TimeSyncer
	Dial      transport.Dialer
	Clock     clockwork.Clock
	Observers []Observer
}

// Detect waits for a supported sensor on the prober's bus and returns its
// adapter.
func Detect(ctx context.Context, p *bus.Prober) (sensors.Sensor, error) {
	id, err := p.WaitForDevice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "app: waiting for sensor")
	}
	sensor, err := sensors.New(id, p.Bus)
	if err != nil {
		return nil, err
	}
	log.Infof("app: reading from %s", sensor.Name())
	return sensor, nil
}

// Run activates the station and runs cycles until ctx is done. Each cycle
// that found the station connected is followed by CycleInterval of sleep.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Session.Start(); err != nil {
		return errors.Wrap(err, "app: activating station")
	}

	for {
		connected := n.RunCycle(ctx)
		if !connected {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		select {
		case <-n.Clock.After(n.Settings.CycleInterval):
		case <-ctx.Done():
			return nil
		}
	}
}

func (n *Node) sample(s env.Sample) {
	for _, o := range n.Observers {
		o.ObserveSample(s)
	}
}

func (n *Node) failure(stage string, err error) {
	for _, o := range n.Observers {
		o.ObserveFailure(stage, err)
	}
}
