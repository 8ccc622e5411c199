// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
)

// Prober waits for a supported sensor to show up on a bus.
type Prober struct {
	Bus      i2c.Bus
	Interval time.Duration
	Clock    clockwork.Clock
}

// NewProber returns a Prober rescanning b every interval.
func NewProber(b i2c.Bus, interval time.Duration, clock clockwork.Clock) *Prober {
	return &Prober{Bus: b, Interval: interval, Clock: clock}
}

type noKnownDeviceError struct {
	found []uint16
}

func (e noKnownDeviceError) Error() string {
	return fmt.Sprintf("no supported device first on bus: %v", e.found)
}

// WaitForDevice blocks until the first address reported by a scan is a
// supported identity. There is no timeout: only ctx ends the wait early.
func (p *Prober) WaitForDevice(ctx context.Context) (Identity, error) {
	log.Info("bus: detecting sensor")

	id, err := retry.DoWithData(
		func() (Identity, error) {
			found := Scan(p.Bus)
			if id, ok := Match(found); ok {
				log.Infof("bus: device_id: %v", found)
				return id, nil
			}
			return Identity{}, noKnownDeviceError{found: found}
		},
		retry.Context(ctx),
		retry.UntilSucceeded(),
		retry.Delay(p.Interval),
		retry.DelayType(retry.FixedDelay),
		retry.WithTimer(p.Clock),
		retry.OnRetry(func(n uint, err error) {
			if e, ok := err.(noKnownDeviceError); ok {
				log.Infof("bus: device_id: %v", e.found)
			}
		}),
	)
	if err != nil {
		return Identity{}, err
	}

	log.Infof("bus: using sensor %s", id)
	return id, nil
}
