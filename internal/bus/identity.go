// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import "fmt"

// Identity is a supported sensor model and the bus address it answers on.
type Identity struct {
	Addr uint16
	Name string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s@0x%02X", id.Name, id.Addr)
}

// Supported devices: (<i2c address>, <name>).
var (
	SHT30  = Identity{Addr: 0x44, Name: "SHT30"}
	AM2320 = Identity{Addr: 0x5C, Name: "AM2320"}
)

// Known lists every supported identity.
func Known() []Identity {
	return []Identity{SHT30, AM2320}
}

// Lookup returns the supported identity at addr.
func Lookup(addr uint16) (Identity, bool) {
	for _, id := range Known() {
		if id.Addr == addr {
			return id, true
		}
	}
	return Identity{}, false
}

// Match inspects only the first scanned address; anything after it is
// ignored.
func Match(found []uint16) (Identity, bool) {
	if len(found) == 0 {
		return Identity{}, false
	}
	return Lookup(found[0])
}
