package broker

import (
	"sync/atomic"
)

// ConnParam is a reference-counted snapshot of a CONNECT packet's fields.
// The transport holds the initial reference; every async path that
// outlives the inbound packet (CONNACK fan-out, the connect-event
// publication, a cached session) must Clone before suspending and
// Release exactly once on completion.
type ConnParam struct {
	ClientID      string
	WillFlag      bool
	WillQoS       byte
	WillRetain    bool
	WillTopic     string
	WillMessage   []byte
	CleanStart    bool
	KeepAlive     uint16
	ProtocolLevel byte
	Username      string
	Password      []byte

	refs *atomic.Int32
}

// NewConnParam builds a ConnParam with an initial reference count of one,
// owned by the caller.
func NewConnParam(clientID string, willFlag bool, willQoS byte, willRetain bool, willTopic string, willMessage []byte, cleanStart bool, keepAlive uint16, protoLevel byte, username string, password []byte) *ConnParam {
	refs := &atomic.Int32{}
	refs.Store(1)
	return &ConnParam{
		ClientID:      clientID,
		WillFlag:      willFlag,
		WillQoS:       willQoS,
		WillRetain:    willRetain,
		WillTopic:     willTopic,
		WillMessage:   willMessage,
		CleanStart:    cleanStart,
		KeepAlive:     keepAlive,
		ProtocolLevel: protoLevel,
		Username:      username,
		Password:      password,
		refs:          refs,
	}
}

// Clone returns cp with its reference count incremented; the returned
// value and cp alias the same snapshot.
func (cp *ConnParam) Clone() *ConnParam {
	cp.refs.Add(1)
	return cp
}

// Release drops one reference. Past the final release, the snapshot is
// eligible for collection; a release past zero is a programmer error and
// is asserted rather than silently ignored.
func (cp *ConnParam) Release() {
	n := cp.refs.Add(-1)
	if n < 0 {
		panic("broker: ConnParam released past zero references")
	}
}

// RefCount reports the current share count, for tests and invariant checks.
func (cp *ConnParam) RefCount() int32 {
	return cp.refs.Load()
}
