// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transport publishes payloads to the MQTT broker. A connection
// lives for one cycle only: connect, publish, disconnect.
package transport

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

// Client is a short-lived broker connection.
type Client interface {
	Connect() error
	Publish(topic string, payload []byte) error
	Disconnect()
}

// Dialer builds a Client for clientID against broker. It must not connect.
type Dialer func(clientID, broker string) Client

// pahoClient wraps the paho client with blocking calls.
type pahoClient struct {
	client mqtt.Client
	qos    byte
}

// NewDialer returns a Dialer creating paho clients publishing at qos.
func NewDialer(qos byte) Dialer {
	return func(clientID, broker string) Client {
		opts := mqtt.NewClientOptions().
			AddBroker(broker).
			SetClientID(clientID).
			SetAutoReconnect(false).
			SetConnectRetry(false).
			SetConnectTimeout(10 * time.Second).
			SetWriteTimeout(10 * time.Second)
		return &pahoClient{client: mqtt.NewClient(opts), qos: qos}
	}
}

func (c *pahoClient) Connect() error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "mqtt connect")
	}
	return nil
}

func (c *pahoClient) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return errors.Wrapf(token.Error(), "mqtt publish to %s", topic)
	}
	return nil
}

func (c *pahoClient) Disconnect() {
	c.client.Disconnect(250)
}
