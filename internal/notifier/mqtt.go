package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/config"
	"github.com/screentime-server/screentime-server/internal/control"
)

const mqttConnectTimeout = 10 * time.Second

// MQTTSink publishes state changes to an MQTT broker. The topic pattern may use
// {device_id} and {user_id}.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
	retain bool
}

// NewMQTTSink connects to the broker
func NewMQTTSink(cfg *config.MQTTConfig) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("MQTT client connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Error().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return &MQTTSink{client: client, topic: cfg.TopicPattern, qos: cfg.QoS, retain: cfg.Retain}, nil
}

// Name implements Sink
func (s *MQTTSink) Name() string {
	return "mqtt"
}

// Topic expands the topic pattern for a change
func Topic(pattern string, change *control.StateChange) string {
	return strings.NewReplacer(
		"{device_id}", change.DeviceID.String(),
		"{user_id}", change.UserID.String(),
	).Replace(pattern)
}

// Notify implements Sink
func (s *MQTTSink) Notify(ctx context.Context, change *control.StateChange) error {
	data, err := json.Marshal(newMessage(change))
	if err != nil {
		return fmt.Errorf("marshal state change: %w", err)
	}

	token := s.client.Publish(Topic(s.topic, change), s.qos, s.retain, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
