package dlep_test

import (
	"bytes"
	"testing"

	"github.com/oonf-go/godlep/internal/dlep"
)

func TestFrameUnframeRoundTrip(t *testing.T) {
	t.Parallel()

	payload := dlep.EncodeTLV(dlep.TLVMACAddress, []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01})
	frame := dlep.Frame(dlep.SignalDestinationUp, payload)

	sig, gotPayload, n := dlep.Unframe(frame)
	if n != len(frame) {
		t.Fatalf("bytesConsumed = %d, want %d", n, len(frame))
	}
	if sig != dlep.SignalDestinationUp {
		t.Fatalf("signal = %v, want %v", sig, dlep.SignalDestinationUp)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload = %x, want %x", gotPayload, payload)
	}
}

func TestUnframeIncomplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short header", []byte{0x00, 0x01, 0x00}},
		{"header only, no payload", []byte{0x00, 0x09, 0x00, 0x06}},
		{"truncated payload", dlep.Frame(dlep.SignalHeartbeat, []byte{1, 2, 3, 4})[:5]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, n := dlep.Unframe(tt.buf)
			if n != 0 {
				t.Fatalf("bytesConsumed = %d, want 0 for incomplete buffer", n)
			}
		})
	}
}

func TestUnframeTwoSignalsBackToBack(t *testing.T) {
	t.Parallel()

	a := dlep.Frame(dlep.SignalHeartbeat, nil)
	b := dlep.Frame(dlep.SignalPeerTermination, dlep.EncodeTLV(dlep.TLVStatus, []byte{0}))
	buf := append(append([]byte{}, a...), b...)

	sig1, _, n1 := dlep.Unframe(buf)
	if sig1 != dlep.SignalHeartbeat || n1 != len(a) {
		t.Fatalf("first signal = %v/%d, want Heartbeat/%d", sig1, n1, len(a))
	}

	sig2, _, n2 := dlep.Unframe(buf[n1:])
	if sig2 != dlep.SignalPeerTermination || n2 != len(b) {
		t.Fatalf("second signal = %v/%d, want PeerTermination/%d", sig2, n2, len(b))
	}
}

func TestSignalTypeStringUnknown(t *testing.T) {
	t.Parallel()

	s := dlep.SignalType(9999)
	if got := s.String(); got == "" {
		t.Fatal("String() returned empty for unknown signal")
	}
}

func TestRegisterSignalName(t *testing.T) {
	t.Parallel()

	custom := dlep.SignalType(500)
	dlep.RegisterSignalName(custom, "Custom Signal")
	if got := custom.String(); got != "Custom Signal" {
		t.Fatalf("String() = %q, want %q", got, "Custom Signal")
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	if got := dlep.StatusSuccess.String(); got != "Success" {
		t.Fatalf("StatusSuccess.String() = %q", got)
	}
	if got := dlep.Status(200).String(); got == "" {
		t.Fatal("unknown status returned empty string")
	}
}
