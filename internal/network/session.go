// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package network keeps the node associated with its wireless network and
// its wall clock in sync.
package network

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/climate_node/internal/config"
)

// Session polls the station at the top of every cycle and reconnects with
// the same credentials, forever, at a fixed pace.
type Session struct {
	Station     Station
	Credentials config.Credentials
	ConnectWait time.Duration
	Clock       clockwork.Clock
}

// NewSession returns a Session for st.
func NewSession(st Station, creds config.Credentials, connectWait time.Duration, clock clockwork.Clock) *Session {
	return &Session{Station: st, Credentials: creds, ConnectWait: connectWait, Clock: clock}
}

// Start powers the station up and logs its initial state.
func (s *Session) Start() error {
	if err := s.Station.Active(true); err != nil {
		return err
	}
	s.logStatus()
	return nil
}

// Ensure reports whether the station was connected at the top of the
// cycle. When it was not, one connect request is issued, the session waits
// ConnectWait and logs the new state; the cycle should then end without
// publishing.
func (s *Session) Ensure(ctx context.Context) bool {
	if s.Station.IsConnected() {
		return true
	}

	if err := s.Station.Connect(s.Credentials.Name, s.Credentials.Secret); err != nil {
		log.Warnf("network: connect to %q: %v", s.Credentials.Name, err)
	}

	select {
	case <-s.Clock.After(s.ConnectWait):
	case <-ctx.Done():
		return false
	}

	s.logStatus()
	return false
}

func (s *Session) logStatus() {
	log.Infof("network: station is connected: %v", s.Station.IsConnected())
	cfg, err := s.Station.IfConfig()
	if err != nil {
		log.Warnf("network: ifconfig: %v", err)
		return
	}
	log.Infof("network: station ifconfig: %s", cfg)
}
