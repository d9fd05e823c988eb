// Package realtime implements the dock's pub/sub channel over MQTT using
// Eclipse Paho. Each session gets its own channel id issued by the backend;
// events travel as JSON payloads on <prefix>/<channelID>/<event> topics.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	corertc "github.com/go-electrify/dockd/core/realtime"
	"github.com/go-electrify/dockd/infra/logger"
	"github.com/go-electrify/dockd/internal/eventbus"
)

// Config defines the MQTT connection parameters.
type Config struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	QoS         byte   `json:"qos"`
	TopicPrefix string `json:"topic_prefix"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "dock"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	return nil
}

// inboundEvents are the channel events the dock subscribes to.
var inboundEvents = []string{
	corertc.EventSessionSpecs,
	corertc.EventStartSession,
	corertc.EventStartCharging,
	corertc.EventLoadCarInfo,
}

// Factory opens per-session channels. Decoded inbound events are published on
// the bus consumed by the session coordinator.
type Factory struct {
	cfg Config
	bus *eventbus.Bus[corertc.Inbound]
	log logger.Logger
}

// NewFactory creates a channel factory.
func NewFactory(cfg Config, bus *eventbus.Bus[corertc.Inbound]) *Factory {
	cfg.SetDefaults()
	return &Factory{cfg: cfg, bus: bus, log: logger.New("realtime")}
}

// Open connects to the broker and attaches to the session's channel topics.
func (f *Factory) Open(channelID string) (corertc.Channel, error) {
	clientID := f.cfg.ClientID
	if clientID != "" {
		clientID += "-" + uuid.NewString()[:8]
	} else {
		clientID = "dock-" + uuid.NewString()
	}

	opts := paho.NewClientOptions().AddBroker(f.cfg.Broker).SetClientID(clientID)
	opts.AutoReconnect = true
	if f.cfg.Username != "" {
		opts.SetUsername(f.cfg.Username)
	}
	if f.cfg.Password != "" {
		opts.SetPassword(f.cfg.Password)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		f.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		f.log.Warnf("reconnecting to MQTT broker")
	}

	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	ch := &Channel{
		cli:    cli,
		prefix: f.cfg.TopicPrefix + "/" + channelID,
		qos:    f.cfg.QoS,
		bus:    f.bus,
		log:    f.log,
	}
	for _, ev := range inboundEvents {
		if token := cli.Subscribe(ch.topic(ev), ch.qos, ch.onMessage); token.Wait() && token.Error() != nil {
			cli.Disconnect(250)
			return nil, fmt.Errorf("subscribe %s: %w", ev, token.Error())
		}
	}
	f.log.Infof("attached to channel %s", channelID)
	return ch, nil
}

// Channel is one attached session channel.
type Channel struct {
	cli    paho.Client
	prefix string
	qos    byte
	bus    *eventbus.Bus[corertc.Inbound]
	log    logger.Logger
}

func (c *Channel) topic(event string) string {
	return c.prefix + "/" + event
}

// Publish sends payload as JSON on the event's topic.
func (c *Channel) Publish(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	if token := c.cli.Publish(c.topic(event), c.qos, false, data); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", event, token.Error())
	}
	return nil
}

// Close detaches from the channel topics and disconnects.
func (c *Channel) Close() {
	topics := make([]string, len(inboundEvents))
	for i, ev := range inboundEvents {
		topics[i] = c.topic(ev)
	}
	if token := c.cli.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
		c.log.Warnf("unsubscribe: %v", token.Error())
	}
	c.cli.Disconnect(250)
}

func (c *Channel) onMessage(_ paho.Client, msg paho.Message) {
	event := msg.Topic()
	if i := strings.LastIndex(event, "/"); i >= 0 {
		event = event[i+1:]
	}
	ev, err := DecodeInbound(event, msg.Payload())
	if err != nil {
		c.log.Warnf("dropping %s event: %v", event, err)
		return
	}
	c.bus.Publish(ev)
}
