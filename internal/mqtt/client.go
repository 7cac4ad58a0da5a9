package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaberg/devdash/internal/config"
	"github.com/sirupsen/logrus"
)

// Client wraps the paho client with devdash topic conventions
type Client struct {
	client   mqtt.Client
	deviceID string
	logger   *logrus.Logger
}

// brokerURL translates the user-facing scheme into the one paho expects.
func brokerURL(parsed *url.URL, raw string) (string, bool, error) {
	switch parsed.Scheme {
	case "ws":
		return raw, false, nil
	case "wss":
		return raw, true, nil
	case "mqtt":
		return strings.Replace(raw, "mqtt://", "tcp://", 1), false, nil
	case "mqtts":
		return strings.Replace(raw, "mqtts://", "ssl://", 1), true, nil
	default:
		return "", false, fmt.Errorf("unsupported protocol scheme: %s (supported: ws, wss, mqtt, mqtts)", parsed.Scheme)
	}
}

// NewClient connects to the broker at mqttURL. The availability topic is
// registered as last will so the dashboard shows offline when devdash dies.
func NewClient(mqttURL, deviceID string, logger *logrus.Logger) (*Client, error) {
	parsedURL, err := url.Parse(mqttURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %w", err)
	}

	broker, secure, err := brokerURL(parsedURL, mqttURL)
	if err != nil {
		return nil, err
	}

	clientID := fmt.Sprintf("devdash-%s", deviceID)
	c := &Client{deviceID: deviceID, logger: logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetConnectTimeout(config.MQTTTimeout)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetWill(c.AvailabilityTopic(), "offline", 1, true)
	if secure {
		// Self-signed brokers are the norm on a bench network.
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12})
	}

	if parsedURL.User != nil {
		password, _ := parsedURL.User.Password()
		opts.SetUsername(parsedURL.User.Username())
		opts.SetPassword(password)
	}

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		logger.Debug("MQTT reconnecting...")
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Debug("MQTT connected")
	})

	c.client = mqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(config.MQTTTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker timed out after %s", config.MQTTTimeout)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.WithFields(logrus.Fields{
		"broker":    cleanURL(mqttURL),
		"protocol":  parsedURL.Scheme,
		"client_id": clientID,
	}).Info("MQTT client connected")

	return c, nil
}

// Publish publishes a message to the specified topic with QoS 1
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, 1, retained, payload)

	if !token.WaitTimeout(config.MQTTTimeout) {
		return fmt.Errorf("publish to topic %s timed out after %s", topic, config.MQTTTimeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	c.logger.WithFields(logrus.Fields{
		"topic":    topic,
		"size":     len(payload),
		"retained": retained,
	}).Debug("Published MQTT message")

	return nil
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect publishes offline availability and disconnects, waiting up to
// quiesce milliseconds for in-flight work.
func (c *Client) Disconnect(quiesce uint) {
	if err := c.PublishAvailability(false); err != nil {
		c.logger.WithError(err).Debug("Failed to publish offline availability")
	}
	c.client.Disconnect(quiesce)
	c.logger.Debug("MQTT client disconnected")
}

// cleanURL removes credentials from URL for logging
func cleanURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.User != nil {
		parsed.User = url.UserPassword("***", "***")
	}
	return parsed.String()
}

// AvailabilityTopic returns the availability topic for this device
func (c *Client) AvailabilityTopic() string {
	return BaseTopic(c.deviceID) + "/availability"
}

// PublishAvailability publishes device availability status
func (c *Client) PublishAvailability(online bool) error {
	status := "offline"
	if online {
		status = "online"
	}
	return c.Publish(c.AvailabilityTopic(), []byte(status), true)
}

// BaseTopic returns devdash/<device id> with the id cleaned for MQTT.
func BaseTopic(deviceID string) string {
	return BuildCleanTopic("devdash", deviceID)
}

// BuildCleanTopic ensures topic follows MQTT standards
func BuildCleanTopic(parts ...string) string {
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		clean := strings.ReplaceAll(part, " ", "_")
		clean = strings.ReplaceAll(clean, "+", "plus")
		clean = strings.ReplaceAll(clean, "#", "hash")
		clean = strings.ToLower(clean)
		cleanParts = append(cleanParts, clean)
	}
	return strings.Join(cleanParts, "/")
}
