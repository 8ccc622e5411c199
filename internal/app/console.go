// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/climate_node/internal/config"
	"github.com/relabs-tech/climate_node/internal/metric"
)

// RunConsole subscribes to the records topic and prints every record to out
// until ctx is done.
func RunConsole(ctx context.Context, cfg *config.Config, out io.Writer) error {
	clientID := "climate-console-" + uuid.NewString()[:8]
	opts := subscriberOptions("console", cfg.MQTTBroker, clientID).
		SetOnConnectHandler(subscribeOnConnect("console", cfg.MQTTTopic, cfg.MQTTQoS, printRecords(out)))

	client := mqtt.NewClient(opts)
	if err := connect(ctx, "console", client); err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	<-ctx.Done()
	log.Info("console: shutting down")
	return nil
}

func printRecords(out io.Writer) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		line, err := FormatRecord(msg.Payload())
		if err != nil {
			log.Warnf("console: %v", err)
			return
		}
		fmt.Fprintln(out, line)
	}
}

// FormatRecord renders one published payload as a console line.
func FormatRecord(payload []byte) (string, error) {
	r, err := parseRecord(payload)
	if err != nil {
		return "", err
	}

	unit := ""
	switch r.Metric {
	case metric.Temperature:
		unit = "ºC"
	case metric.Humidity:
		unit = "%"
	}

	ts := time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339)
	return fmt.Sprintf("[%-11s] %s %s/%s %6.2f%s", r.Metric, ts, r.Tags.Source, r.Tags.Sensor, r.Value, unit), nil
}

// parseRecord decodes a payload and checks it carries what an OpenTSDB
// datapoint requires.
func parseRecord(payload []byte) (metric.Record, error) {
	var r metric.Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return metric.Record{}, errors.Wrapf(err, "record could not be parsed (%s)", payload)
	}
	if r.Metric == "" {
		return metric.Record{}, errors.Errorf("record without metric name (%s)", payload)
	}
	if r.Timestamp <= 0 {
		return metric.Record{}, errors.Errorf("record without timestamp (%s)", payload)
	}
	return r, nil
}
