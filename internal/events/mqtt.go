package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TokenPublisher is the part of mqtt.Client used for publishing.
type TokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes events as JSON to <prefix>/cars/<car_id>/<type>.
type MQTTPublisher struct {
	client  TokenPublisher
	prefix  string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher creates a publisher on an already connected client.
func NewMQTTPublisher(client TokenPublisher, prefix string, qos byte, timeout time.Duration) *MQTTPublisher {
	if prefix == "" {
		prefix = "fleet"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos, timeout: timeout}
}

// DialMQTT connects a paho client to broker.
func DialMQTT(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}
	return client, nil
}

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(event Event) string {
	return fmt.Sprintf("%s/cars/%s/%s", p.prefix, event.CarID, event.Type)
}

// Publish sends the event and waits for the broker acknowledgement.
func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("mqtt: encode event: %w", err)
	}

	token := p.client.Publish(p.Topic(event), p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("mqtt: publish %s timed out", event.Type)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", event.Type, err)
	}
	return nil
}
