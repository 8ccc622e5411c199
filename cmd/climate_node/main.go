// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/climate_node/internal/app"
	"github.com/relabs-tech/climate_node/internal/bus"
	"github.com/relabs-tech/climate_node/internal/config"
	"github.com/relabs-tech/climate_node/internal/display"
	"github.com/relabs-tech/climate_node/internal/metrics"
	"github.com/relabs-tech/climate_node/internal/network"
	"github.com/relabs-tech/climate_node/internal/transport"
	"github.com/relabs-tech/climate_node/internal/web"
)

func main() {
	configPath := flag.String("config", "node_config.txt", "path to the node settings file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Info("starting climate node")

	settings, err := config.LoadSettings(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.SetLevel(settings.LogLevel)
	log.Infof("source label: %q, broker: %s, client id: %s", settings.Source, settings.MQTTBroker, settings.MQTTClientID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sensorBus, err := bus.Open(settings.I2CBus)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer sensorBus.Close()

	clock := clockwork.NewRealClock()

	recorder := metrics.New(settings.Source)
	observers := []app.Observer{recorder}

	if settings.StatusListenAddr != "" {
		srv := web.New(settings.StatusListenAddr, settings.Source, recorder.Handler())
		observers = append(observers, srv)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				log.Errorf("status server stopped: %v", err)
			}
		}()
	}

	if settings.DisplayI2CAddr != 0 {
		displayBus, err := bus.Open(settings.DisplayI2CBus)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		defer displayBus.Close()

		d, err := display.Open(displayBus, settings.Source)
		if err != nil {
			log.Warnf("display disabled: %v", err)
		} else {
			observers = append(observers, d)
		}
	}

	sensor, err := app.Detect(ctx, bus.NewProber(sensorBus, settings.ScanInterval, clock))
	if err != nil {
		if ctx.Err() != nil {
			log.Info("interrupted while waiting for a sensor")
			return
		}
		log.Fatalf("fatal: %v", err)
	}

	node := &app.Node{
		Settings:  settings,
		Sensor:    sensor,
		Session:   network.NewSession(network.NewNMStation(settings.WiFiInterface), settings.Credentials, settings.ConnectWait, clock),
		TimeSync:  network.NewTimeSync(settings.NTPServer, settings.NTPTimeout),
		Dial:      transport.NewDialer(settings.MQTTQoS),
		Clock:     clock,
		Observers: observers,
	}

	if err := node.Run(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Info("climate node stopped")
}
