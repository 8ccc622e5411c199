// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/climate_node/internal/bus"
)

func main() {
	busName := flag.String("bus", "", "I2C bus name or number (empty for the default bus)")
	flag.Parse()

	b, err := bus.Open(*busName)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer b.Close()

	found := bus.Scan(b)
	if len(found) == 0 {
		fmt.Println("no device acknowledged")
		return
	}

	for _, addr := range found {
		if id, ok := bus.Lookup(addr); ok {
			fmt.Printf("0x%02X  %s\n", addr, id.Name)
		} else {
			fmt.Printf("0x%02X  unknown\n", addr)
		}
	}

	if id, ok := bus.Match(found); ok {
		fmt.Printf("climate_node would use %s\n", id)
	} else {
		fmt.Printf("climate_node would keep scanning: first address 0x%02X is not a supported sensor\n", found[0])
	}
}
