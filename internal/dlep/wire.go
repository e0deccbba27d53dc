package dlep

// Wire codec for DLEP signals and TLVs (RFC 8175 Section 9). Signal = u16
// signal_type, u16 signal_length, payload[signal_length]. TLV = u16 tlv_type,
// u16 tlv_length, value[tlv_length]. All length fields are network byte order
// (big-endian).

import (
	"encoding/binary"
	"errors"
)

// SignalHeaderSize is the fixed signal header size: type (2) + length (2).
const SignalHeaderSize = 4

// TLVHeaderSize is the fixed TLV header size: type (2) + length (2).
const TLVHeaderSize = 4

// DiscoveryPrefix is the fixed 4-byte magic that precedes every signal
// sent over the UDP discovery path.
var DiscoveryPrefix = [4]byte{'D', 'L', 'E', 'P'}

// Framing errors. IncompleteHeader/IncompleteTLV are benign on a TCP stream
// (wait for more bytes) and fatal on a UDP datagram (drop); the caller decides
// which.
var (
	ErrIncompleteHeader = errors.New("dlep: incomplete signal header")
	ErrIncompleteTLV    = errors.New("dlep: incomplete tlv")
)

// Frame encodes a signal with the given payload (a concatenation of
// already-encoded TLVs) into a self-contained wire record.
func Frame(signalType SignalType, payload []byte) []byte {
	buf := make([]byte, SignalHeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(signalType))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(payload)))
	copy(buf[SignalHeaderSize:], payload)
	return buf
}

// Unframe extracts one signal from buf. bytesConsumed == 0 means buf did
// not contain a complete signal yet (the caller should retain the bytes
// and wait for more. A non-zero bytesConsumed is always
// SignalHeaderSize+signalLength, even when the payload turns out to be
// semantically invalid — framing and TLV validation are separate concerns.
func Unframe(buf []byte) (signalType SignalType, payload []byte, bytesConsumed int) {
	if len(buf) < SignalHeaderSize {
		return 0, nil, 0
	}

	st := binary.BigEndian.Uint16(buf[0:2])
	length := binary.BigEndian.Uint16(buf[2:4])

	total := SignalHeaderSize + int(length)
	if len(buf) < total {
		return 0, nil, 0
	}

	return SignalType(st), buf[SignalHeaderSize:total], total
}

// rawTLV is one undecoded TLV as found while walking a signal payload.
type rawTLV struct {
	tlvType TLVType
	offset  int // offset of value within the signal payload
	length  int
}

// walkTLVs iterates every TLV in payload in wire order, invoking fn for
// each. It returns ErrIncompleteTLV if a TLV header or value is
// truncated. fn may return false to stop iteration early without error.
func walkTLVs(payload []byte, fn func(rawTLV) bool) error {
	offset := 0
	for offset < len(payload) {
		if len(payload)-offset < TLVHeaderSize {
			return ErrIncompleteTLV
		}

		tlvType := TLVType(binary.BigEndian.Uint16(payload[offset : offset+2]))
		length := int(binary.BigEndian.Uint16(payload[offset+2 : offset+4]))
		valueOffset := offset + TLVHeaderSize

		if len(payload)-valueOffset < length {
			return ErrIncompleteTLV
		}

		if !fn(rawTLV{tlvType: tlvType, offset: valueOffset, length: length}) {
			return nil
		}

		offset = valueOffset + length
	}
	return nil
}

// EncodeTLV returns the wire bytes for one TLV: header followed by value.
func EncodeTLV(tlvType TLVType, value []byte) []byte {
	buf := make([]byte, TLVHeaderSize+len(value))
	binary.BigEndian.PutUint16(buf[0:2], uint16(tlvType))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(value)))
	copy(buf[TLVHeaderSize:], value)
	return buf
}
