package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanomq-go/nanomq/internal/config"
	"github.com/nanomq-go/nanomq/internal/packet"
)

func TestMatchTopicFilterLiteral(t *testing.T) {
	require.True(t, matchTopicFilter("a/b", "a/b"))
	require.False(t, matchTopicFilter("a/b", "a/c"))
}

func TestMatchTopicFilterPlusWildcard(t *testing.T) {
	require.True(t, matchTopicFilter("a/+/c", "a/b/c"))
	require.False(t, matchTopicFilter("a/+/c", "a/b/b/c"))
}

func TestMatchTopicFilterHashWildcard(t *testing.T) {
	require.True(t, matchTopicFilter("a/#", "a/b/c"))
	require.True(t, matchTopicFilter("a/#", "a"))
	require.False(t, matchTopicFilter("b/#", "a/b"))
}

func TestBridgeMatchesForwardChecksAllConfiguredFilters(t *testing.T) {
	br := NewBridge(&config.BridgeConfig{Forwards: []string{"sensors/#", "alerts/+"}}, nil)

	require.True(t, br.matchesForward("sensors/kitchen/temp"))
	require.True(t, br.matchesForward("alerts/fire"))
	require.False(t, br.matchesForward("other/topic"))
}

func TestBridgeForwardSkipsNonMatchingTopicWithoutTouchingClient(t *testing.T) {
	br := NewBridge(&config.BridgeConfig{Forwards: []string{"sensors/#"}}, nil)

	pub := &packet.PublishPacket{Topic: "other/topic", Payload: []byte("x")}
	err := br.Forward(context.Background(), pub)
	require.NoError(t, err)
}
