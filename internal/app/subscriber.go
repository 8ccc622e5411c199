// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// subscriberOptions are the paho options of a long-lived subscriber. The
// client reconnects on its own; subscriptions are restored by the
// OnConnect handler.
func subscriberOptions(component, broker, clientID string) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(time.Second).
		SetWriteTimeout(time.Second).
		SetKeepAlive(10 * time.Second).
		SetPingTimeout(time.Second).
		SetConnectRetry(true).
		SetAutoReconnect(true).
		SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
			log.Warnf("%s: unexpected message on %s: %s", component, msg.Topic(), msg.Payload())
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("%s: connection lost: %v", component, err)
		}).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			log.Infof("%s: attempting to reconnect", component)
		})
}

// subscribeOnConnect subscribes handler to topic every time the client
// (re)connects.
func subscribeOnConnect(component, topic string, qos byte, handler mqtt.MessageHandler) mqtt.OnConnectHandler {
	return func(c mqtt.Client) {
		log.Infof("%s: connection established", component)
		token := c.Subscribe(topic, qos, handler)
		token.Wait()
		if token.Error() != nil {
			log.Errorf("%s: subscribe to %s: %v", component, topic, token.Error())
			return
		}
		log.Infof("%s: subscribed to %s", component, topic)
	}
}

// connect waits for the first connection or for ctx.
func connect(ctx context.Context, component string, client mqtt.Client) error {
	token := client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return errors.Wrapf(token.Error(), "%s: connect", component)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
