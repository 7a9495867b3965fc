package broker

import "sync"

// PipeIndex maps a live pipe-id to the ordered list of topic filters it
// currently holds. Invariant: membership here is the exact dual of the
// topic tree's subscriber lists; mutations to both must be applied
// together.
type PipeIndex struct {
	mu     sync.RWMutex
	topics map[uint64][]string
}

// NewPipeIndex returns an empty index.
func NewPipeIndex() *PipeIndex {
	return &PipeIndex{topics: make(map[uint64][]string)}
}

// CheckID reports whether pipeID has any entry in the index.
func (p *PipeIndex) CheckID(pipeID uint64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.topics[pipeID]
	return ok
}

// GetTopics returns a copy of pipeID's topic filter list.
func (p *PipeIndex) GetTopics(pipeID uint64) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.topics[pipeID]...)
}

// Add appends filter to pipeID's list, a no-op if already present.
func (p *PipeIndex) Add(pipeID uint64, filter string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.topics[pipeID] {
		if existing == filter {
			return
		}
	}
	p.topics[pipeID] = append(p.topics[pipeID], filter)
}

// Remove deletes filter from pipeID's list.
func (p *PipeIndex) Remove(pipeID uint64, filter string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := p.topics[pipeID]
	for i, existing := range list {
		if existing == filter {
			p.topics[pipeID] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Del removes pipeID's entire entry, returning its former topic list.
func (p *PipeIndex) Del(pipeID uint64) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := p.topics[pipeID]
	delete(p.topics, pipeID)
	return topics
}

// Rebind moves pipeID's topic list onto newPipeID, for session restore.
func (p *PipeIndex) Rebind(pipeID, newPipeID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topics, ok := p.topics[pipeID]; ok {
		delete(p.topics, pipeID)
		p.topics[newPipeID] = topics
	}
}
