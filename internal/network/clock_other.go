// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package network

import (
	"time"

	"github.com/pkg/errors"
)

func setSystemClock(time.Time) error {
	return errors.New("setting the system clock is only supported on linux")
}
