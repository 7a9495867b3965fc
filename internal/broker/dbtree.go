package broker

import (
	"strings"
	"sync"

	"github.com/nanomq-go/nanomq/internal/packet"
)

// subscriber is a client context listed at a tree node: the pipe that
// subscribed, its client-id (for logging), and the QoS it requested for
// this filter.
type subscriber struct {
	pipeID   uint64
	clientID string
	qos      packet.QoSLevel
}

// retainedMsg is the single retained payload a node may carry.
type retainedMsg struct {
	payload []byte
	qos     packet.QoSLevel
	topic   string
}

// dbNode is one level of the topic trie. children indexes literal levels;
// plusChild and hashChild hold the `+` and `#` wildcard branches. `#`
// never has children, and a subscriber appears at most once per node.
type dbNode struct {
	children map[string]*dbNode
	plusChild *dbNode
	hashChild *dbNode
	subs      map[uint64]subscriber
	retained  *retainedMsg
}

func newDBNode() *dbNode {
	return &dbNode{children: make(map[string]*dbNode)}
}

func (n *dbNode) empty() bool {
	return len(n.children) == 0 && n.plusChild == nil && n.hashChild == nil && len(n.subs) == 0 && n.retained == nil
}

// DBTree is the wildcard-capable trie mapping topic filters to client
// contexts. A single tree-wide sync.RWMutex guards every operation rather
// than per-node locking; see DESIGN.md for why that tradeoff was kept at
// this scale.
type DBTree struct {
	mu   sync.RWMutex
	root *dbNode
}

// NewDBTree returns an empty tree.
func NewDBTree() *DBTree {
	return &DBTree{root: newDBNode()}
}

func splitLevels(filter string) []string {
	return strings.Split(filter, "/")
}

// Insert adds ctx to the terminal node of filter, a no-op if the pipe is
// already listed there.
func (t *DBTree) Insert(filter string, pipeID uint64, clientID string, qos packet.QoSLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	node := t.root
	for _, level := range splitLevels(filter) {
		switch level {
		case "+":
			if node.plusChild == nil {
				node.plusChild = newDBNode()
			}
			node = node.plusChild
		case "#":
			if node.hashChild == nil {
				node.hashChild = newDBNode()
			}
			node = node.hashChild
		default:
			child, ok := node.children[level]
			if !ok {
				child = newDBNode()
				node.children[level] = child
			}
			node = child
		}
	}

	if node.subs == nil {
		node.subs = make(map[uint64]subscriber)
	}
	if _, ok := node.subs[pipeID]; ok {
		return
	}
	node.subs[pipeID] = subscriber{pipeID: pipeID, clientID: clientID, qos: qos}
}

// Delete removes pipeID's subscriber record from filter's terminal node
// and prunes the path bottom-up when nodes become empty. Returns the
// removed subscriber and whether one was found.
func (t *DBTree) Delete(filter string, pipeID uint64) (subscriber, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	levels := splitLevels(filter)
	path := make([]*dbNode, 0, len(levels)+1)
	path = append(path, t.root)

	node := t.root
	for _, level := range levels {
		switch level {
		case "+":
			if node.plusChild == nil {
				return subscriber{}, false
			}
			node = node.plusChild
		case "#":
			if node.hashChild == nil {
				return subscriber{}, false
			}
			node = node.hashChild
		default:
			child, ok := node.children[level]
			if !ok {
				return subscriber{}, false
			}
			node = child
		}
		path = append(path, node)
	}

	sub, ok := node.subs[pipeID]
	if !ok {
		return subscriber{}, false
	}
	delete(node.subs, pipeID)

	// Prune bottom-up; a node with a retained message is kept alive.
	for i := len(path) - 1; i > 0; i-- {
		cur := path[i]
		if !cur.empty() {
			break
		}
		parent := path[i-1]
		level := levels[i-1]
		switch level {
		case "+":
			if parent.plusChild == cur {
				parent.plusChild = nil
			}
		case "#":
			if parent.hashChild == cur {
				parent.hashChild = nil
			}
		default:
			if parent.children[level] == cur {
				delete(parent.children, level)
			}
		}
	}

	return sub, true
}

// Match walks topic's literal levels plus every `+` branch at each level
// and `#` branch at any prefix, returning the union of subscribers with
// duplicate pipe-ids collapsed to the highest requested QoS.
func (t *DBTree) Match(topic string) []subscriber {
	t.mu.RLock()
	defer t.mu.RUnlock()

	levels := splitLevels(topic)
	best := make(map[uint64]subscriber)

	var walk func(node *dbNode, idx int)
	walk = func(node *dbNode, idx int) {
		if node == nil {
			return
		}
		if node.hashChild != nil {
			for _, sub := range node.hashChild.subs {
				if existing, ok := best[sub.pipeID]; !ok || sub.qos > existing.qos {
					best[sub.pipeID] = sub
				}
			}
		}
		if idx == len(levels) {
			for _, sub := range node.subs {
				if existing, ok := best[sub.pipeID]; !ok || sub.qos > existing.qos {
					best[sub.pipeID] = sub
				}
			}
			return
		}

		level := levels[idx]
		if child, ok := node.children[level]; ok {
			walk(child, idx+1)
		}
		if node.plusChild != nil {
			walk(node.plusChild, idx+1)
		}
	}

	walk(t.root, 0)

	result := make([]subscriber, 0, len(best))
	for _, sub := range best {
		result = append(result, sub)
	}
	return result
}

// Retain stores msg at topic's exact literal path; an empty payload
// deletes the retained entry instead.
func (t *DBTree) Retain(topic string, payload []byte, qos packet.QoSLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	node := t.root
	levels := splitLevels(topic)
	path := []*dbNode{node}
	for _, level := range levels {
		child, ok := node.children[level]
		if !ok {
			if len(payload) == 0 {
				return
			}
			child = newDBNode()
			node.children[level] = child
		}
		node = child
		path = append(path, node)
	}

	if len(payload) == 0 {
		node.retained = nil
		for i := len(path) - 1; i > 0; i-- {
			cur := path[i]
			if !cur.empty() {
				break
			}
			parent := path[i-1]
			delete(parent.children, levels[i-1])
		}
		return
	}

	node.retained = &retainedMsg{payload: append([]byte(nil), payload...), qos: qos, topic: topic}
}

// RetainedFor returns every retained message whose literal topic matches
// the (possibly wildcarded) filter.
func (t *DBTree) RetainedFor(filter string) []retainedMsg {
	t.mu.RLock()
	defer t.mu.RUnlock()

	levels := splitLevels(filter)
	var out []retainedMsg

	var walk func(node *dbNode, idx int)
	walk = func(node *dbNode, idx int) {
		if node == nil {
			return
		}
		if idx == len(levels) {
			if node.retained != nil {
				out = append(out, *node.retained)
			}
			return
		}

		level := levels[idx]
		switch level {
		case "#":
			collectAllRetained(node, &out)
		case "+":
			for _, child := range node.children {
				walk(child, idx+1)
			}
		default:
			if child, ok := node.children[level]; ok {
				walk(child, idx+1)
			}
		}
	}

	walk(t.root, 0)
	return out
}

func collectAllRetained(node *dbNode, out *[]retainedMsg) {
	if node.retained != nil {
		*out = append(*out, *node.retained)
	}
	for _, child := range node.children {
		collectAllRetained(child, out)
	}
}
