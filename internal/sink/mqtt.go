package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the MQTT sink. DiscoveryPrefix and BaseTopic
// have the conventional Home Assistant defaults.
type MQTTConfig struct {
	BrokerURL       string // e.g. "tcp://homeassistant:1883"
	Username        string
	Password        string
	ClientID        string
	DiscoveryPrefix string // default "homeassistant"
	BaseTopic       string // default "ha-sedif"
}

// MQTT publishes entities over MQTT using the hub's discovery protocol:
// a retained config topic per entity, then retained state / attribute /
// availability topics. Re-declaring is a retained-message overwrite, so
// repeating the full cycle every run is safe.
type MQTT struct {
	cfg    MQTTConfig
	client mqtt.Client
}

var _ Sink = (*MQTT)(nil)

// NewMQTT connects to the broker. The connection is kept for the life of
// the process; paho reconnects between runs on its own.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("mqtt: broker URL is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "ha-sedif"
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "ha-sedif"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("%w: connect to %s timed out", ErrUnavailable, cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %v", ErrUnavailable, cfg.BrokerURL, err)
	}
	return &MQTT{cfg: cfg, client: client}, nil
}

// discoveryConfig is the payload of a discovery config topic.
type discoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	AttributesTopic   string          `json:"json_attributes_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	Unit              string          `json:"unit_of_measurement,omitempty"`
	Device            discoveryDevice `json:"device"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

func (m *MQTT) Declare(ctx context.Context, device Device, entities []Entity) error {
	dev := discoveryDevice{
		Identifiers:  device.Identifiers,
		Name:         device.Name,
		Manufacturer: device.Manufacturer,
		Model:        device.Model,
	}
	for _, e := range entities {
		cfg := discoveryConfig{
			Name:              e.Name,
			UniqueID:          e.EntityID,
			StateTopic:        m.stateTopic(e.EntityID),
			AttributesTopic:   m.attributesTopic(e.EntityID),
			AvailabilityTopic: m.availabilityTopic(e.EntityID),
			Unit:              e.Unit,
			Device:            dev,
		}
		payload, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("mqtt: marshal config for %s: %w", e.EntityID, err)
		}
		topic := fmt.Sprintf("%s/sensor/%s/config", m.cfg.DiscoveryPrefix, e.EntityID)
		if err := m.publish(ctx, topic, payload); err != nil {
			return err
		}
	}
	return nil
}

func (m *MQTT) Publish(ctx context.Context, entityID string, v Value) error {
	if !v.Available {
		// Offline on the availability topic is the hub's explicit
		// unavailable state; the stale retained state stops being shown.
		return m.publish(ctx, m.availabilityTopic(entityID), []byte("offline"))
	}
	if err := m.publish(ctx, m.availabilityTopic(entityID), []byte("online")); err != nil {
		return err
	}
	if len(v.Attributes) > 0 {
		attrs, err := json.Marshal(v.Attributes)
		if err != nil {
			return fmt.Errorf("mqtt: marshal attributes for %s: %w", entityID, err)
		}
		if err := m.publish(ctx, m.attributesTopic(entityID), attrs); err != nil {
			return err
		}
	}
	return m.publish(ctx, m.stateTopic(entityID), []byte(fmt.Sprint(v.State)))
}

func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

func (m *MQTT) stateTopic(entityID string) string {
	return fmt.Sprintf("%s/%s/state", m.cfg.BaseTopic, entityID)
}

func (m *MQTT) attributesTopic(entityID string) string {
	return fmt.Sprintf("%s/%s/attributes", m.cfg.BaseTopic, entityID)
}

func (m *MQTT) availabilityTopic(entityID string) string {
	return fmt.Sprintf("%s/%s/availability", m.cfg.BaseTopic, entityID)
}

// publish sends one retained message, bounded by ctx.
func (m *MQTT) publish(ctx context.Context, topic string, payload []byte) error {
	token := m.client.Publish(topic, 1, true, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: publish %s: %v", ErrUnavailable, topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: publish %s: %v", ErrUnavailable, topic, ctx.Err())
	}
}
