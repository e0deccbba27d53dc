package dlep

import "fmt"

// -------------------------------------------------------------------------
// Baseline Signal Catalogue — RFC 8175 Section 11.1
// -------------------------------------------------------------------------

// SignalType identifies a DLEP signal (16 bits on the wire, RFC 8175
// Section 9.1). The catalogue below covers the signals the base
// protocol defines; extensions may register additional values.
type SignalType uint16

// Baseline signal type codes, in the numeric order published by the
// IANA DLEP Signal and Message Type registry (RFC 8175 Section 11.1).
const (
	SignalPeerDiscovery         SignalType = 1
	SignalPeerOffer             SignalType = 2
	SignalPeerInitialization    SignalType = 3
	SignalPeerInitializationAck SignalType = 4
	SignalPeerUpdate            SignalType = 5
	SignalPeerUpdateAck         SignalType = 6
	SignalPeerTermination       SignalType = 7
	SignalPeerTerminationAck    SignalType = 8
	SignalDestinationUp         SignalType = 9
	SignalDestinationUpAck      SignalType = 10
	SignalDestinationUpdate     SignalType = 11
	SignalDestinationDown       SignalType = 12
	SignalDestinationDownAck    SignalType = 13
	SignalHeartbeat             SignalType = 14
)

// signalNames maps the baseline signal codes to their wire names for
// logging. Extensions are expected to register their own names via
// RegisterSignalName; unregistered codes fall back to a numeric form.
var signalNames = map[SignalType]string{
	SignalPeerDiscovery:         "Peer Discovery",
	SignalPeerOffer:             "Peer Offer",
	SignalPeerInitialization:    "Peer Initialization",
	SignalPeerInitializationAck: "Peer Initialization Ack",
	SignalPeerUpdate:            "Peer Update",
	SignalPeerUpdateAck:         "Peer Update Ack",
	SignalPeerTermination:       "Peer Termination",
	SignalPeerTerminationAck:    "Peer Termination Ack",
	SignalDestinationUp:         "Destination Up",
	SignalDestinationUpAck:      "Destination Up Ack",
	SignalDestinationUpdate:     "Destination Update",
	SignalDestinationDown:       "Destination Down",
	SignalDestinationDownAck:    "Destination Down Ack",
	SignalHeartbeat:             "Heartbeat",
}

// RegisterSignalName adds a human-readable name for an extension-defined
// signal type, used only for logging. Idempotent.
func RegisterSignalName(id SignalType, name string) {
	signalNames[id] = name
}

// String returns the human-readable name of the signal type, or a
// numeric placeholder if unregistered.
func (s SignalType) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Signal(%d)", uint16(s))
}

// -------------------------------------------------------------------------
// Baseline TLV Catalogue — RFC 8175 Section 11.2
// -------------------------------------------------------------------------

// TLVType identifies a DLEP TLV (16 bits on the wire).
type TLVType uint16

// Baseline TLV type codes (RFC 8175 Section 11.2). Extension metric
// TLVs (current data rate, latency, ...) live in radiostats.go next to
// the extension that owns them.
const (
	TLVStatus             TLVType = 1
	TLVIPv4Address        TLVType = 2
	TLVIPv6Address        TLVType = 3
	TLVMACAddress         TLVType = 4
	TLVIdentification     TLVType = 5
	TLVHeartbeatInterval  TLVType = 6
	TLVExtensionsSupported TLVType = 7
	TLVPeerType           TLVType = 8
)

var tlvNames = map[TLVType]string{
	TLVStatus:              "Status",
	TLVIPv4Address:         "IPv4 Address",
	TLVIPv6Address:         "IPv6 Address",
	TLVMACAddress:          "MAC Address",
	TLVIdentification:      "Identification",
	TLVHeartbeatInterval:   "Heartbeat Interval",
	TLVExtensionsSupported: "Extensions Supported",
	TLVPeerType:            "Peer Type",
}

// RegisterTLVName adds a human-readable name for an extension-defined
// TLV type, used only for logging. Idempotent.
func RegisterTLVName(id TLVType, name string) {
	tlvNames[id] = name
}

// String returns the human-readable name of the TLV type, or a numeric
// placeholder if unregistered.
func (t TLVType) String() string {
	if name, ok := tlvNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TLV(%d)", uint16(t))
}

// -------------------------------------------------------------------------
// Status Codes — RFC 8175 Section 11.3
// -------------------------------------------------------------------------

// Status is the value carried in the Status TLV (RFC 8175 Section 13.1).
type Status uint8

const (
	StatusSuccess         Status = 0
	StatusUnknownSignal    Status = 1
	StatusUnexpectedSignal Status = 2
	StatusInvalidTLV       Status = 3
	StatusInvalidTLVValue  Status = 4
	StatusTimeout          Status = 5
	StatusShutdown         Status = 6
)

var statusNames = [...]string{
	"Success",
	"Unknown Signal",
	"Unexpected Signal",
	"Invalid TLV",
	"Invalid TLV Value",
	"Timeout",
	"Shutdown",
}

// String returns the human-readable name of the status code.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}
