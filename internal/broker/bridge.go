// The bridge forwarder. A single upstream client session re-emits
// locally matched publications to an upstream broker and re-injects
// upstream deliveries through the standard RECV path, built on
// eclipse/paho.golang.
package broker

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/eclipse/paho.golang/paho"

	"github.com/nanomq-go/nanomq/internal/config"
	"github.com/nanomq-go/nanomq/internal/logger"
	"github.com/nanomq-go/nanomq/internal/packet"
)

// Bridge holds the upstream client session and the forwarding rules
// configured for it.
type Bridge struct {
	cfg    *config.BridgeConfig
	broker *Broker
	client *paho.Client
	log    *logger.Logger
}

// NewBridge constructs a Bridge bound to broker, unconnected.
func NewBridge(cfg *config.BridgeConfig, broker *Broker) *Bridge {
	return &Bridge{cfg: cfg, broker: broker, log: logger.NewMQTTLogger("bridge")}
}

// Connect dials the upstream broker, issues CONNECT with the configured
// credentials and keepalive, and subscribes to every entry in sub_list.
func (br *Bridge) Connect(ctx context.Context) error {
	conn, err := net.Dial("tcp", br.cfg.Address)
	if err != nil {
		return fmt.Errorf("bridge: dial %s: %w", br.cfg.Address, err)
	}

	br.client = paho.NewClient(paho.ClientConfig{
		Conn: conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				br.onUpstreamPublish(pr.Packet.Topic, pr.Packet.Payload, pr.Packet.QoS, pr.Packet.Retain)
				return true, nil
			},
		},
		OnClientError: func(err error) {
			br.log.LogError("bridge client", err)
		},
	})

	connAck, err := br.client.Connect(ctx, &paho.Connect{
		ClientID:     br.cfg.ClientID,
		KeepAlive:    br.cfg.KeepAlive,
		CleanStart:   br.cfg.CleanStart,
		UsernameFlag: br.cfg.Username != "",
		Username:     br.cfg.Username,
		PasswordFlag: br.cfg.Password != "",
		Password:     []byte(br.cfg.Password),
	})
	if err != nil {
		return fmt.Errorf("bridge: connect: %w", err)
	}
	if connAck.ReasonCode != 0 {
		return fmt.Errorf("bridge: upstream rejected connect, reason %d", connAck.ReasonCode)
	}

	for _, sub := range br.cfg.SubList {
		if _, err := br.client.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: sub.Topic, QoS: sub.QoS}},
		}); err != nil {
			return fmt.Errorf("bridge: subscribe %s: %w", sub.Topic, err)
		}
	}

	br.log.Info("bridge connected", "address", br.cfg.Address, "client_id", br.cfg.ClientID)
	return nil
}

// onUpstreamPublish re-injects an upstream delivery through the standard
// RECV path, subject to the same subscription matching any local PUBLISH
// would receive.
func (br *Bridge) onUpstreamPublish(topic string, payload []byte, qos byte, retain bool) {
	pub := &packet.PublishPacket{
		Topic:   topic,
		Payload: payload,
		QoS:     packet.QoSLevel(qos),
		Retain:  retain,
	}
	fan, err := br.broker.HandlePublish(pub, 0)
	if err != nil {
		br.log.LogError("bridge re-inject", err)
		return
	}
	br.broker.dispatchFanoutSync(fan)
}

// matchesForward reports whether topic matches any configured forwards[]
// filter.
func (br *Bridge) matchesForward(topic string) bool {
	for _, filter := range br.cfg.Forwards {
		if matchTopicFilter(filter, topic) {
			return true
		}
	}
	return false
}

// Forward composes and sends a PUBLISH to the upstream broker, preserving
// payload, qos and retain, for any local PUBLISH matching forwards[]. The
// DUP flag of the local PUBLISH is not carried over.
func (br *Bridge) Forward(ctx context.Context, pub *packet.PublishPacket) error {
	if !br.matchesForward(pub.Topic) {
		return nil
	}
	_, err := br.client.Publish(ctx, &paho.Publish{
		Topic:   pub.Topic,
		Payload: pub.Payload,
		QoS:     byte(pub.QoS),
		Retain:  pub.Retain,
	})
	return err
}

// matchTopicFilter reports whether topic matches filter, using the same
// `+`/`#` wildcard rules as the topic tree's Match, so the bridge's
// forwards[] filters behave identically to a live subscription.
func matchTopicFilter(filter, topic string) bool {
	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")

	for i, level := range filterLevels {
		if level == "#" {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if level != "+" && level != topicLevels[i] {
			return false
		}
	}
	return len(filterLevels) == len(topicLevels)
}
