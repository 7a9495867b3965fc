package broker

import "github.com/nanomq-go/nanomq/internal/packet"

// fanoutDest is one destination in a fan-out: the pipe to deliver to, the
// negotiated QoS, and the packet already cloned for that pipe.
type fanoutDest struct {
	pipeID uint64
	qos    packet.QoSLevel
	packet *packet.PublishPacket
}

// fanout is the ordered pipe-fanout descriptor built for a single PUBLISH;
// a new one is built per PUBLISH rather than reset and reused. Invariant
// index <= len(dests), and when equal the fanout is complete and can be
// released.
type fanout struct {
	dests []fanoutDest
	index int
}

func newFanout(dests []fanoutDest) *fanout {
	return &fanout{dests: dests}
}

// Total is the number of destinations in this fanout.
func (f *fanout) Total() int { return len(f.dests) }

// Done reports whether every destination has been dispatched.
func (f *fanout) Done() bool { return f.index >= len(f.dests) }

// Next returns the next destination to dispatch and advances the cursor.
// Calling Next when Done is a programmer error.
func (f *fanout) Next() fanoutDest {
	d := f.dests[f.index]
	f.index++
	return d
}
