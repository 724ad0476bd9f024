package mqttpub

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/joshp123/evorelay/internal/config"
)

// Publisher is the subset of an MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close() error
}

type pahoPublisher struct {
	client  mqtt.Client
	timeout time.Duration
}

// Dial connects to the broker described by cfg.
func Dial(cfg *config.MQTTConfig) (Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing mqtt config")
	}
	broker, useTLS, err := brokerURL(cfg.Broker)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	if useTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		clientID = "evorelay-" + uuid.NewString()[:8]
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return &pahoPublisher{client: client, timeout: 10 * time.Second}, nil
}

func (p *pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt publish %s: timed out", topic)
	}
	return token.Error()
}

func (p *pahoPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

// brokerURL normalizes mqtt:// and mqtts:// to the schemes paho dials.
func brokerURL(raw string) (string, bool, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false, fmt.Errorf("parse broker: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid broker: %q", raw)
	}

	switch u.Scheme {
	case "tcp", "mqtt":
		return "tcp://" + u.Host, false, nil
	case "ssl", "tls", "mqtts":
		return "ssl://" + u.Host, true, nil
	case "ws":
		return "ws://" + u.Host + u.Path, false, nil
	case "wss":
		return "wss://" + u.Host + u.Path, true, nil
	default:
		return "", false, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}
