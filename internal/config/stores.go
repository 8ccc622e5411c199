// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/climate_node/internal/metric"
)

// ErrMalformed reports a plain-text store whose content does not match its
// expected format.
var ErrMalformed = errors.New("malformed store")

// Credentials are the wireless network name and secret.
type Credentials struct {
	Name   string
	Secret string
}

// String hides the secret.
func (c Credentials) String() string {
	return c.Name + ",***"
}

// Settings is everything the node reads at startup. It is built once and
// never modified afterwards.
type Settings struct {
	*Config
	Credentials Credentials
	Source      string
	Offsets     metric.Offsets
}

// LoadSettings reads the settings file and the three plain-text stores it
// points to. Missing credentials or source label are fatal; a missing
// offsets store is not.
func LoadSettings(configPath string) (*Settings, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}

	creds, err := LoadCredentials(cfg.WiFiConfigFile)
	if err != nil {
		return nil, err
	}

	source, err := LoadSourceLabel(cfg.SourceFile)
	if err != nil {
		return nil, err
	}

	return &Settings{
		Config:      cfg,
		Credentials: creds,
		Source:      source,
		Offsets:     LoadOffsets(cfg.OffsetsFile),
	}, nil
}

// LoadCredentials reads "<network_name>,<secret>". The secret is everything
// after the first comma.
func LoadCredentials(path string) (Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "read network credentials")
	}

	name, secret, ok := strings.Cut(trimLineEnd(string(raw)), ",")
	if !ok || name == "" {
		return Credentials{}, errors.Wrapf(ErrMalformed, "network credentials %s: want <name>,<secret>", path)
	}
	return Credentials{Name: name, Secret: secret}, nil
}

// LoadSourceLabel reads the install-location label, used as-is apart from
// the trailing line ending.
func LoadSourceLabel(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read source label")
	}
	label := trimLineEnd(string(raw))
	if label == "" {
		log.Warnf("config: source label in %s is empty", path)
	}
	return label, nil
}

// LoadOffsets reads "<temperature_offset>,<humidity_offset>". Any problem
// yields zero offsets; it is logged and never returned.
func LoadOffsets(path string) metric.Offsets {
	if path == "" {
		log.Info("config: no offsets file configured, offsets are 0")
		return metric.Offsets{}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Infof("config: cannot read offsets (%v), offsets are 0", err)
		return metric.Offsets{}
	}

	offsets, err := parseOffsets(trimLineEnd(string(raw)))
	if err != nil {
		log.Warnf("config: offsets in %s ignored: %v", path, err)
		return metric.Offsets{}
	}

	log.Infof("config: offsets temperature=%+.2f humidity=%+.2f", offsets.Temperature, offsets.Humidity)
	return offsets
}

func parseOffsets(s string) (metric.Offsets, error) {
	t, h, ok := strings.Cut(s, ",")
	if !ok {
		return metric.Offsets{}, errors.Wrap(ErrMalformed, "want <temperature>,<humidity>")
	}

	temp, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
	if err != nil {
		return metric.Offsets{}, errors.Wrap(err, "temperature offset")
	}
	hum, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return metric.Offsets{}, errors.Wrap(err, "humidity offset")
	}
	return metric.Offsets{Temperature: temp, Humidity: hum}, nil
}

func trimLineEnd(s string) string {
	return strings.TrimRight(s, "\r\n")
}
