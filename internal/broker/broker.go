// Package broker implements the per-worker request/response core of the
// MQTT broker: the topic tree and retained store, the pipe/session index,
// the publish and subscribe/unsubscribe handlers, the worker state
// machine, the bridge forwarder, and the will/connect-event composer.
package broker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nanomq-go/nanomq/internal/config"
	"github.com/nanomq-go/nanomq/internal/logger"
	"github.com/nanomq-go/nanomq/internal/packet"
)

// SendFunc delivers an already-encoded packet to pipeID. internal/transport
// registers this at startup so the broker core can push asynchronous
// fan-out deliveries (a PUBLISH landing on a pipe other than the one that
// triggered it) without depending on the transport package.
type SendFunc func(pipeID uint64, encoded []byte)

// Broker is the broker-context value every worker is handed, in place of
// process-wide mutable tables: no package-level state is kept.
type Broker struct {
	cfg *config.Config
	log *logger.Logger

	liveTree     *DBTree
	retainedTree *DBTree
	pipes        *PipeIndex
	sessions     *SessionCache

	qos   *QoSManager
	pool  *Pool
	sink  SendFunc

	bridge *Bridge

	packetIDSeq atomic.Uint32

	workItems []*WorkItem
	workMu    sync.Mutex
}

// New constructs a Broker from an immutable config, sizing its work-item
// pool and task-queue semaphore from cfg.Parallel and cfg.MaxTaskQThread.
func New(cfg *config.Config) *Broker {
	b := &Broker{
		cfg:          cfg,
		log:          logger.NewMQTTLogger("broker"),
		liveTree:     NewDBTree(),
		retainedTree: NewDBTree(),
		pipes:        NewPipeIndex(),
		sessions:     NewSessionCache(time.Duration(cfg.SessionCacheTTL) * time.Second),
		pool:         NewPool(cfg.MaxTaskQThread),
	}
	b.qos = NewQoSManager(time.Duration(cfg.QoSDuration)*time.Second, b.resendTo)
	b.workItems = make([]*WorkItem, cfg.Parallel)
	for i := range b.workItems {
		b.workItems[i] = newWorkItem(0, false)
	}
	return b
}

// SetSink registers the transport's per-pipe delivery function. Must be
// called before any publish/fan-out activity begins.
func (b *Broker) SetSink(fn SendFunc) { b.sink = fn }

// SetBridge attaches the upstream forwarder; nil disables bridging.
func (b *Broker) SetBridge(br *Bridge) { b.bridge = br }

// Start launches background machinery (the QoS resend timer).
func (b *Broker) Start() { b.qos.Start() }

// Stop halts background machinery.
func (b *Broker) Stop() { b.qos.Stop() }

func (b *Broker) resendTo(pipeID uint64, pkt *packet.PublishPacket) {
	if b.sink != nil {
		b.sink(pipeID, pkt.Encode())
	}
}

func (b *Broker) nextPacketID() uint16 {
	for {
		id := uint16(b.packetIDSeq.Add(1))
		if id != 0 {
			return id
		}
	}
}

// NewWorkItem hands out a fresh work item bound to pipeID for the
// transport's per-connection goroutine to drive through Step. The fixed
// pool allocated in New is reused where a slot is free, falling back to a
// transient allocation once every slot is checked out, so a burst of new
// connections is never blocked on pool exhaustion.
func (b *Broker) NewWorkItem(pipeID uint64, bridge bool) *WorkItem {
	b.workMu.Lock()
	defer b.workMu.Unlock()

	for _, w := range b.workItems {
		if w.pipeID == 0 && w.state == StateInit {
			w.pipeID = pipeID
			if bridge {
				w.proto = ProtoBridge
			}
			return w
		}
	}
	return newWorkItem(pipeID, bridge)
}

// ReleaseWorkItem returns w to the fixed pool for reuse, resetting it to
// its pre-allocation state.
func (b *Broker) ReleaseWorkItem(w *WorkItem) {
	b.workMu.Lock()
	defer b.workMu.Unlock()
	*w = WorkItem{state: StateInit}
}

// BindSession either restores a cached session (a clean-start=false
// reconnect) or evicts any stale entry (clean-start=true), returning the
// restored subscription list, if any, and whether a session was present.
func (b *Broker) BindSession(clientID string, pipeID uint64, cleanStart bool) (subscriptions []string, sessionPresent bool) {
	if cleanStart {
		b.sessions.Evict(clientID)
		return nil, false
	}

	session, ok := b.sessions.Take(clientID)
	if !ok {
		return nil, false
	}
	// The cache's reference was the last one standing; release it now
	// that the session record has been consumed, per ConnParam's
	// every-share-must-release discipline.
	session.ConnParam.Release()

	b.pipes.Rebind(session.PipeID, pipeID)
	for _, topic := range session.Subscriptions {
		b.rebindSubscriber(topic, session.PipeID, pipeID, clientID)
	}

	return session.Subscriptions, true
}

// rebindSubscriber re-keys a single subscriber record under newPipeID on
// session restore: the cached subscription set is re-bound to the new
// pipe-id in both the pipe index and every topic-tree node it appears in.
func (b *Broker) rebindSubscriber(filter string, oldPipeID, newPipeID uint64, clientID string) {
	sub, ok := b.liveTree.Delete(filter, oldPipeID)
	qos := packet.QoSAtMostOnce
	if ok {
		qos = sub.qos
	}
	b.liveTree.Insert(filter, newPipeID, clientID, qos)
}

// CacheSession stores the pipe's current subscriptions under clientID for
// a future clean-start=false reconnect, cloning cp so the cache owns an
// independent reference.
func (b *Broker) CacheSession(clientID string, cp *ConnParam, pipeID uint64) {
	topics := b.pipes.GetTopics(pipeID)
	b.sessions.Store(clientID, cp, pipeID, topics)
}

// GetClientSubscriptions returns pipeID's current topic filter list.
func (b *Broker) GetClientSubscriptions(pipeID uint64) []string {
	return b.pipes.GetTopics(pipeID)
}

// ComposeConnectEventFor builds the system-topic join notification for a
// just-accepted CONNECT, for internal/transport to publish right after
// writing the CONNACK.
func (b *Broker) ComposeConnectEventFor(clientID string, connectFlags byte, sessionPresent bool) *packet.PublishPacket {
	return composeConnectEvent(clientID, connectFlags, sessionPresent)
}

// PublishSystemEvent runs evt through HandlePublish and synchronously
// dispatches its fanout, for connect/disconnect notifications composed
// outside the worker state machine's own WAIT transitions.
func (b *Broker) PublishSystemEvent(evt *packet.PublishPacket) {
	fan, err := b.HandlePublish(evt, 0)
	if err != nil {
		return
	}
	b.dispatchFanoutSync(fan)
}
