package broker

import (
	"encoding/json"

	"github.com/nanomq-go/nanomq/internal/packet"
)

// connectEventTopic and disconnectEventTopic are the system topics
// connect/disconnect notifications are published on, so subscribers to
// broker-event topics observe client joins and leaves.
const (
	connectEventTopic    = "$SYS/broker/connection/connected"
	disconnectEventTopic = "$SYS/broker/connection/disconnected"
)

// composeWill builds a PUBLISH from cp's will fields, for promotion
// through HandlePublish on teardown (a received DISCONNECT or a lost pipe).
func composeWill(cp *ConnParam) *packet.PublishPacket {
	return &packet.PublishPacket{
		QoS:     packet.QoSLevel(cp.WillQoS),
		Retain:  cp.WillRetain,
		Topic:   cp.WillTopic,
		Payload: cp.WillMessage,
	}
}

type connectEvent struct {
	ClientID      string `json:"client_id"`
	ConnectFlags  byte   `json:"connect_flags"`
	SessionPresent bool   `json:"session_present"`
}

// composeConnectEvent synthesizes the join notification sent after a
// CONNACK, carrying the raw connect flags byte for subscribers that want it.
func composeConnectEvent(clientID string, connectFlags byte, sessionPresent bool) *packet.PublishPacket {
	payload, _ := json.Marshal(connectEvent{ClientID: clientID, ConnectFlags: connectFlags, SessionPresent: sessionPresent})
	return &packet.PublishPacket{
		QoS:     packet.QoSAtMostOnce,
		Topic:   connectEventTopic,
		Payload: payload,
	}
}

type disconnectEvent struct {
	ClientID string `json:"client_id"`
	Abnormal bool   `json:"abnormal"`
}

// composeDisconnectEvent synthesizes the symmetric leave notification.
func composeDisconnectEvent(clientID string, abnormal bool) *packet.PublishPacket {
	payload, _ := json.Marshal(disconnectEvent{ClientID: clientID, Abnormal: abnormal})
	return &packet.PublishPacket{
		QoS:     packet.QoSAtMostOnce,
		Topic:   disconnectEventTopic,
		Payload: payload,
	}
}
