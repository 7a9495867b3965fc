package transport

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/nanomq-go/nanomq/internal/broker"
)

// Registry is the single pipe-id allocator and delivery sink shared by
// every listener bound to the same broker. A pipe-id must be unique
// broker-wide — the pipe/session index keys subscriptions and QoS state
// by it — so broker+tcp:// and nmq+ws:// cannot each keep their own
// counter once both run against one Broker.
type Registry struct {
	broker     *broker.Broker
	nextPipeID atomic.Uint64

	mu    sync.Mutex
	pipes map[uint64]net.Conn
}

// NewRegistry builds a registry and wires it as b's delivery sink.
func NewRegistry(b *broker.Broker) *Registry {
	r := &Registry{broker: b, pipes: make(map[uint64]net.Conn)}
	r.nextPipeID.Store(0)
	b.SetSink(r.send)
	return r
}

func (r *Registry) allocate(conn net.Conn) uint64 {
	id := r.nextPipeID.Add(1)
	r.mu.Lock()
	r.pipes[id] = conn
	r.mu.Unlock()
	return id
}

func (r *Registry) release(pipeID uint64) {
	r.mu.Lock()
	delete(r.pipes, pipeID)
	r.mu.Unlock()
}

func (r *Registry) send(pipeID uint64, encoded []byte) {
	r.mu.Lock()
	conn := r.pipes[pipeID]
	r.mu.Unlock()
	if conn == nil {
		return
	}
	_, _ = conn.Write(encoded)
}

// CloseAll closes every live connection across every listener sharing
// this registry, for process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.pipes {
		_ = conn.Close()
	}
}
