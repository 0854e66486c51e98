// Package wire implements a length-prefixed, stack-payload message
// codec: a fixed binary header followed by a LIFO payload, values
// pushed in forward order and popped in reverse. All integers are
// little-endian.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/kilimba-labs/ledgerchain/internal/xerrors"
)

// Kind identifies a message's payload shape.
type Kind uint32

const (
	NodeGUIDRequest Kind = iota
	NodeGUIDResponse
	AddressAmountRequest
	AddressAmountResponse
	// TransactionBroadcast is reserved; this core does not broadcast
	// transactions to peer mempools.
	TransactionBroadcast
)

// Network ID constants.
const (
	MainnetNetworkID uint64 = 0x5F2C781316C75688
	TestnetNetworkID uint64 = 0x05D73FF55BB77E55
)

// HeaderSize is the fixed wire size of a Header: u32 kind, u32
// size_bytes, u64 network_id.
const HeaderSize = 4 + 4 + 8

// Header is the fixed binary preamble of every message.
type Header struct {
	Kind      Kind
	SizeBytes uint32
	NetworkID uint64
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Kind))
	binary.LittleEndian.PutUint32(buf[4:8], h.SizeBytes)
	binary.LittleEndian.PutUint64(buf[8:16], h.NetworkID)
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, xerrors.ErrEOF
	}
	return Header{
		Kind:      Kind(binary.LittleEndian.Uint32(buf[0:4])),
		SizeBytes: binary.LittleEndian.Uint32(buf[4:8]),
		NetworkID: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// Message is a single framed message: a header plus a stack-encoded
// payload. Typed values are appended at the payload's tail by the
// Push* methods; Pop* methods remove them again, in the reverse order
// they were pushed.
type Message struct {
	NetworkID uint64
	kind      Kind
	payload   []byte
}

// NewMessage starts an empty outbound message of the given kind.
func NewMessage(kind Kind, networkID uint64) *Message {
	return &Message{NetworkID: networkID, kind: kind}
}

// Kind reports the message's kind.
func (m *Message) Kind() Kind { return m.kind }

// PushUint32 appends a fixed 4-byte little-endian value to the payload
// tail.
func (m *Message) PushUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.payload = append(m.payload, b[:]...)
}

// PushUint64 appends a fixed 8-byte little-endian value to the payload
// tail.
func (m *Message) PushUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	m.payload = append(m.payload, b[:]...)
}

// PushFloat64 appends a fixed 8-byte IEEE-754 value to the payload tail.
func (m *Message) PushFloat64(v float64) {
	m.PushUint64(math.Float64bits(v))
}

// PushString appends L bytes of s followed by a 4-byte little-endian
// length.
func (m *Message) PushString(s string) {
	m.payload = append(m.payload, s...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	m.payload = append(m.payload, lenBuf[:]...)
}

// PopUint32 removes the trailing 4-byte fixed value.
func (m *Message) PopUint32() (uint32, error) {
	if len(m.payload) < 4 {
		return 0, xerrors.ErrEOF
	}
	tail := m.payload[len(m.payload)-4:]
	v := binary.LittleEndian.Uint32(tail)
	m.payload = m.payload[:len(m.payload)-4]
	return v, nil
}

// PopUint64 removes the trailing 8-byte fixed value.
func (m *Message) PopUint64() (uint64, error) {
	if len(m.payload) < 8 {
		return 0, xerrors.ErrEOF
	}
	tail := m.payload[len(m.payload)-8:]
	v := binary.LittleEndian.Uint64(tail)
	m.payload = m.payload[:len(m.payload)-8]
	return v, nil
}

// PopFloat64 removes the trailing 8-byte IEEE-754 value.
func (m *Message) PopFloat64() (float64, error) {
	bits, err := m.PopUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// PopString removes the trailing length-prefixed string: the 4-byte
// length first, then that many bytes below it.
func (m *Message) PopString() (string, error) {
	length, err := m.PopUint32()
	if err != nil {
		return "", err
	}
	if uint32(len(m.payload)) < length {
		return "", xerrors.ErrEOF
	}
	start := len(m.payload) - int(length)
	s := string(m.payload[start:])
	m.payload = m.payload[:start]
	return s, nil
}

// Len reports the current payload size in bytes.
func (m *Message) Len() int { return len(m.payload) }

// Encode serializes the message to its wire form: header || payload.
func (m *Message) Encode() []byte {
	h := Header{Kind: m.kind, SizeBytes: uint32(len(m.payload)), NetworkID: m.NetworkID}
	buf := make([]byte, 0, HeaderSize+len(m.payload))
	buf = append(buf, h.encode()...)
	buf = append(buf, m.payload...)
	return buf
}

// DecodeHeader parses only the fixed header from the front of buf,
// used by a reader that has just received HeaderSize bytes and needs
// size_bytes before it can read the payload.
func DecodeHeader(buf []byte) (Header, error) {
	return decodeHeader(buf)
}

// DecodeMessage parses a full header-plus-payload buffer into a
// Message, ready for Pop* calls in reverse push order.
func DecodeMessage(buf []byte) (*Message, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}
	rest := buf[HeaderSize:]
	if uint32(len(rest)) < h.SizeBytes {
		return nil, xerrors.ErrEOF
	}
	payload := make([]byte, h.SizeBytes)
	copy(payload, rest[:h.SizeBytes])
	return &Message{NetworkID: h.NetworkID, kind: h.Kind, payload: payload}, nil
}
