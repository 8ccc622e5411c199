// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package network

import (
	"time"

	"github.com/beevik/ntp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TimeSync sets the process wall clock from an NTP server.
type TimeSync struct {
	Server  string
	Timeout time.Duration

	query    func(host string, opt ntp.QueryOptions) (*ntp.Response, error)
	setClock func(time.Time) error
}

// NewTimeSync returns a TimeSync against server. Each Sync gives up after
// timeout.
func NewTimeSync(server string, timeout time.Duration) *TimeSync {
	return &TimeSync{
		Server:   server,
		Timeout:  timeout,
		query:    ntp.QueryWithOptions,
		setClock: setSystemClock,
	}
}

// Sync does one NTP exchange and steps the clock by the measured offset.
func (t *TimeSync) Sync() error {
	log.Debugf("network: setting time from %s", t.Server)

	resp, err := t.query(t.Server, ntp.QueryOptions{Timeout: t.Timeout})
	if err != nil {
		return errors.Wrapf(err, "ntp query %s", t.Server)
	}
	if err := resp.Validate(); err != nil {
		return errors.Wrapf(err, "ntp response from %s", t.Server)
	}

	if err := t.setClock(time.Now().Add(resp.ClockOffset)); err != nil {
		return errors.Wrap(err, "set clock")
	}
	log.Infof("network: time set (offset %s)", resp.ClockOffset)
	return nil
}
