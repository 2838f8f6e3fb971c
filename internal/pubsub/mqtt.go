package pubsub

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/annzb/mmwave/internal/monitoring"
	"github.com/annzb/mmwave/internal/pointcloud"
)

// MQTTConfig describes the broker connection for the external cloud topic.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	Topic    string `json:"topic"`
	Username string `json:"username"`
	Password string `json:"password"`
	QoS      byte   `json:"qos"`
}

// MQTTPublisher carries emitted clouds to an MQTT topic as JSON payloads.
type MQTTPublisher struct {
	client mqtt.Client
	config MQTTConfig
}

// generateClientID creates a random client ID for the MQTT connection.
func generateClientID() string {
	bytes := make([]byte, 8)
	crand.Read(bytes)
	return "mmwave_" + hex.EncodeToString(bytes)
}

// NewMQTTPublisher connects to the broker and returns a publisher for the
// configured topic.
func NewMQTTPublisher(config MQTTConfig) (*MQTTPublisher, error) {
	if config.Broker == "" {
		return nil, fmt.Errorf("mqtt broker address is required")
	}
	if config.Topic == "" {
		config.Topic = "mmwave/points"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(generateClientID())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		monitoring.Logf("mqtt: connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		monitoring.Logf("mqtt: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", config.Broker, token.Error())
	}
	monitoring.Logf("mqtt: publishing clouds to %s on %s", config.Topic, config.Broker)

	return &MQTTPublisher{client: client, config: config}, nil
}

// Publish serializes the cloud and publishes it to the configured topic.
// Broker errors are logged; the pipeline is never blocked on the transport.
func (p *MQTTPublisher) Publish(c *pointcloud.Cloud) {
	payload, err := json.Marshal(c)
	if err != nil {
		monitoring.Logf("mqtt: failed to marshal cloud for frame %d: %v", c.FrameNumber, err)
		return
	}
	token := p.client.Publish(p.config.Topic, p.config.QoS, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			monitoring.Logf("mqtt: publish failed for frame %d: %v", c.FrameNumber, token.Error())
		}
	}()
}

// Close disconnects from the broker, allowing a short drain for in-flight
// messages.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
