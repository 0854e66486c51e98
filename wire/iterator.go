package wire

// ReceivedMessage pairs a decoded Message with the identity of the
// connection it arrived on: a received message carries the
// originating connection's numeric ID rather than a
// strong reference, so handlers don't couple to connection lifetime.
type ReceivedMessage struct {
	ConnectionID  uint32
	SenderAddress string
	Message       *Message
}

// Iterator walks a message's payload back-to-front, yielding fixed or
// string elements without needing the caller to know the exact layout
// up front. Mirrors the original source's MessageIterator (net/message.h).
type Iterator struct {
	msg *Message
}

// NewIterator starts an iterator over msg's current payload.
func NewIterator(msg *Message) *Iterator {
	return &Iterator{msg: msg}
}

// HasNext reports whether any bytes remain to pop.
func (it *Iterator) HasNext() bool {
	return it.msg.Len() > 0
}

// NextUint32 pops the next fixed 4-byte value.
func (it *Iterator) NextUint32() (uint32, error) { return it.msg.PopUint32() }

// NextUint64 pops the next fixed 8-byte value.
func (it *Iterator) NextUint64() (uint64, error) { return it.msg.PopUint64() }

// NextFloat64 pops the next fixed 8-byte IEEE-754 value.
func (it *Iterator) NextFloat64() (float64, error) { return it.msg.PopFloat64() }

// NextString pops the next length-prefixed string.
func (it *Iterator) NextString() (string, error) { return it.msg.PopString() }
