package broker

import (
	"sync"
	"time"

	"github.com/nanomq-go/nanomq/internal/packet"
)

// Default retry parameters for the QoS resend timer.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 30 * time.Second
	QoS2Timeout       = 5 * time.Minute
)

// pendingMessage is an outstanding QoS1/QoS2 delivery awaiting
// acknowledgement.
type pendingMessage struct {
	packet    *packet.PublishPacket
	pipeID    uint64
	sentAt    time.Time
	retries   int
}

// receivedQoS2 tracks an inbound QoS2 publish awaiting PUBREL from the
// sender.
type receivedQoS2 struct {
	receivedAt time.Time
}

// QoSManager tracks in-flight QoS1/QoS2 handshakes and periodically
// retransmits unacknowledged messages. It runs orthogonally to the worker
// state machine; retries are scoped per (pipeID, packetID) so a pipe's
// relative delivery order is never disturbed.
type QoSManager struct {
	mu           sync.RWMutex
	pendingQoS1  map[uint64]map[uint16]*pendingMessage
	pendingQoS2  map[uint64]map[uint16]*pendingMessage
	qos2Received map[uint64]map[uint16]*receivedQoS2

	retryDelay time.Duration
	maxRetries int
	ticker     *time.Ticker
	stopCh     chan struct{}

	resend func(pipeID uint64, pkt *packet.PublishPacket)
}

// NewQoSManager builds a manager with the given resend interval and a
// callback used to retransmit a message to its destination pipe.
func NewQoSManager(resendInterval time.Duration, resend func(pipeID uint64, pkt *packet.PublishPacket)) *QoSManager {
	if resendInterval <= 0 {
		resendInterval = DefaultRetryDelay
	}
	return &QoSManager{
		pendingQoS1:  make(map[uint64]map[uint16]*pendingMessage),
		pendingQoS2:  make(map[uint64]map[uint16]*pendingMessage),
		qos2Received: make(map[uint64]map[uint16]*receivedQoS2),
		retryDelay:   resendInterval,
		maxRetries:   DefaultMaxRetries,
		stopCh:       make(chan struct{}),
		resend:       resend,
	}
}

// Start launches the background retry loop.
func (q *QoSManager) Start() {
	q.ticker = time.NewTicker(q.retryDelay)
	go q.retryLoop()
}

// Stop halts the retry loop.
func (q *QoSManager) Stop() {
	close(q.stopCh)
	if q.ticker != nil {
		q.ticker.Stop()
	}
}

// AddPendingQoS1 records an outstanding QoS1 publish awaiting PUBACK.
func (q *QoSManager) AddPendingQoS1(pipeID uint64, packetID uint16, pkt *packet.PublishPacket) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pendingQoS1[pipeID] == nil {
		q.pendingQoS1[pipeID] = make(map[uint16]*pendingMessage)
	}
	q.pendingQoS1[pipeID][packetID] = &pendingMessage{packet: pkt, pipeID: pipeID, sentAt: time.Now()}
}

// AddPendingQoS2 records an outstanding QoS2 publish awaiting PUBREC.
func (q *QoSManager) AddPendingQoS2(pipeID uint64, packetID uint16, pkt *packet.PublishPacket) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pendingQoS2[pipeID] == nil {
		q.pendingQoS2[pipeID] = make(map[uint16]*pendingMessage)
	}
	q.pendingQoS2[pipeID][packetID] = &pendingMessage{packet: pkt, pipeID: pipeID, sentAt: time.Now()}
}

// HandlePubAck clears a QoS1 outstanding entry on PUBACK.
func (q *QoSManager) HandlePubAck(pipeID uint64, packetID uint16) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pendingQoS1[pipeID], packetID)
}

// HandlePubRec clears the QoS2 send-side entry on PUBREC (the caller then
// sends PUBREL and awaits PUBCOMP).
func (q *QoSManager) HandlePubRec(pipeID uint64, packetID uint16) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pendingQoS2[pipeID], packetID)
}

// HandlePubComp is a no-op retained for symmetry; PUBCOMP completes the
// QoS2 handshake entirely on the sender side.
func (q *QoSManager) HandlePubComp(pipeID uint64, packetID uint16) {}

// HandleIncomingQoS2Publish records a just-received QoS2 publish so a
// duplicate PUBLISH with the same id can be detected before PUBREL, and
// reports whether packetID was already outstanding for pipeID — the
// caller must skip re-dispatching the fan-out on a duplicate and only
// resend the PUBREC.
func (q *QoSManager) HandleIncomingQoS2Publish(pipeID uint64, packetID uint16) (duplicate bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.qos2Received[pipeID] == nil {
		q.qos2Received[pipeID] = make(map[uint16]*receivedQoS2)
	}
	_, duplicate = q.qos2Received[pipeID][packetID]
	q.qos2Received[pipeID][packetID] = &receivedQoS2{receivedAt: time.Now()}
	return duplicate
}

// HandleIncomingPubRel clears the receive-side QoS2 tracking entry.
func (q *QoSManager) HandleIncomingPubRel(pipeID uint64, packetID uint16) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.qos2Received[pipeID], packetID)
}

// CleanupClient drops every tracked entry for pipeID, on disconnect.
func (q *QoSManager) CleanupClient(pipeID uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pendingQoS1, pipeID)
	delete(q.pendingQoS2, pipeID)
	delete(q.qos2Received, pipeID)
}

func (q *QoSManager) retryLoop() {
	for {
		select {
		case <-q.ticker.C:
			q.processRetries()
			q.cleanupTimedOutMessages()
		case <-q.stopCh:
			return
		}
	}
}

func (q *QoSManager) processRetries() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for pipeID, pending := range q.pendingQoS1 {
		for id, msg := range pending {
			q.retryMessage(pipeID, id, msg)
		}
	}
	for pipeID, pending := range q.pendingQoS2 {
		for id, msg := range pending {
			q.retryMessage(pipeID, id, msg)
		}
	}
}

func (q *QoSManager) retryMessage(pipeID uint64, packetID uint16, msg *pendingMessage) {
	if time.Since(msg.sentAt) < q.retryDelay {
		return
	}
	if msg.retries >= q.maxRetries {
		return
	}
	msg.retries++
	msg.sentAt = time.Now()
	if q.resend != nil {
		dup := *msg.packet
		dup.DUP = true
		q.resend(pipeID, &dup)
	}
}

func (q *QoSManager) cleanupTimedOutMessages() {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for _, received := range q.qos2Received {
		for id, r := range received {
			if now.Sub(r.receivedAt) > QoS2Timeout {
				delete(received, id)
			}
		}
	}
}

// GetStatistics reports the current outstanding-message counts, for the
// admin HTTP surface.
func (q *QoSManager) GetStatistics() (pendingQoS1, pendingQoS2, qos2Received int) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, m := range q.pendingQoS1 {
		pendingQoS1 += len(m)
	}
	for _, m := range q.pendingQoS2 {
		pendingQoS2 += len(m)
	}
	for _, m := range q.qos2Received {
		qos2Received += len(m)
	}
	return
}
