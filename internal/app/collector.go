// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/climate_node/internal/config"
)

// collectorQoS is the subscription QoS of the collector.
const collectorQoS = 1

// Forwarder posts published records to an OpenTSDB /api/put endpoint.
type Forwarder struct {
	URL      string
	Client   *http.Client
	Attempts uint
	Delay    time.Duration
}

// NewForwarder returns a Forwarder for url with three attempts per record.
func NewForwarder(url string) *Forwarder {
	return &Forwarder{
		URL:      url,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Attempts: 3,
		Delay:    time.Second,
	}
}

// Forward checks payload is a datapoint and posts it unchanged. Server
// errors are retried; client errors are not.
func (f *Forwarder) Forward(ctx context.Context, payload []byte) error {
	if _, err := parseRecord(payload); err != nil {
		return err
	}

	return retry.Do(
		func() error { return f.post(ctx, payload) },
		retry.Context(ctx),
		retry.Attempts(f.Attempts),
		retry.Delay(f.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debugf("collector: attempt %d: %v", n+1, err)
		}),
	)
}

func (f *Forwarder) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(payload))
	if err != nil {
		return retry.Unrecoverable(errors.Wrapf(err, "prepare request to %s", f.URL))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "write to TSDB")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Unrecoverable(errors.Errorf("TSDB rejected record (%d): %s", resp.StatusCode, bytes.TrimSpace(body)))
	default:
		return errors.Errorf("TSDB write failed (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}
}

// Handle returns the message handler forwarding every record.
func (f *Forwarder) Handle(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		log.Infof("collector: received message: %s on topic %s", msg.Payload(), msg.Topic())
		if err := f.Forward(ctx, msg.Payload()); err != nil {
			log.Errorf("collector: cannot write %s to TSDB: %v", msg.Payload(), err)
		}
	}
}

// RunCollector subscribes to the records topic and forwards every record to
// cfg.TSDBURL until ctx is done.
func RunCollector(ctx context.Context, cfg *config.Config) error {
	fwd := NewForwarder(cfg.TSDBURL)
	opts := subscriberOptions("collector", cfg.MQTTBroker, cfg.CollectorClientID).
		SetOrderMatters(false).
		SetOnConnectHandler(subscribeOnConnect("collector", cfg.MQTTTopic, collectorQoS, fwd.Handle(ctx)))

	client := mqtt.NewClient(opts)
	log.Infof("collector: connecting to %s", cfg.MQTTBroker)
	if err := connect(ctx, "collector", client); err != nil {
		return err
	}
	log.Infof("collector: forwarding %s to %s", cfg.MQTTTopic, cfg.TSDBURL)

	<-ctx.Done()
	log.Info("collector: signal caught, exiting")
	client.Disconnect(1000)
	return nil
}
