package dlep_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/oonf-go/godlep/internal/dlep"
)

func TestWriterBeginAddFinish(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	w := dlep.NewWriter(buf, 0)

	if err := w.Begin(dlep.SignalHeartbeat); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := w.AddTLV(dlep.TLVStatus, []byte{0}); err != nil {
		t.Fatalf("AddTLV() error = %v", err)
	}

	frame, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	sig, payload, n := dlep.Unframe(frame)
	if n != len(frame) || sig != dlep.SignalHeartbeat {
		t.Fatalf("unframed = %v/%d, want Heartbeat/%d", sig, n, len(frame))
	}
	if !bytes.Equal(payload, dlep.EncodeTLV(dlep.TLVStatus, []byte{0})) {
		t.Fatalf("payload = %x", payload)
	}
	if w.IsOpen() {
		t.Fatal("IsOpen() true after Finish()")
	}
}

func TestWriterRejectsNestedBegin(t *testing.T) {
	t.Parallel()

	w := dlep.NewWriter(&bytes.Buffer{}, 0)
	if err := w.Begin(dlep.SignalHeartbeat); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	err := w.Begin(dlep.SignalHeartbeat)
	if !errors.Is(err, dlep.ErrSignalInProgress) {
		t.Fatalf("second Begin() error = %v, want ErrSignalInProgress", err)
	}
}

func TestWriterAddTLVWithoutBegin(t *testing.T) {
	t.Parallel()

	w := dlep.NewWriter(&bytes.Buffer{}, 0)
	err := w.AddTLV(dlep.TLVStatus, []byte{0})
	if !errors.Is(err, dlep.ErrNoOpenSignal) {
		t.Fatalf("AddTLV() error = %v, want ErrNoOpenSignal", err)
	}
}

func TestWriterFinishWithoutBegin(t *testing.T) {
	t.Parallel()

	w := dlep.NewWriter(&bytes.Buffer{}, 0)
	_, err := w.Finish()
	if !errors.Is(err, dlep.ErrNoOpenSignal) {
		t.Fatalf("Finish() error = %v, want ErrNoOpenSignal", err)
	}
}

func TestWriterAbortRewindsBuffer(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	w := dlep.NewWriter(buf, 0)

	if err := w.Begin(dlep.SignalHeartbeat); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := w.AddTLV(dlep.TLVStatus, []byte{0}); err != nil {
		t.Fatalf("AddTLV() error = %v", err)
	}
	before := buf.Len()
	_ = before
	w.Abort()

	if buf.Len() != 0 {
		t.Fatalf("buffer len after Abort() = %d, want 0", buf.Len())
	}
	if w.IsOpen() {
		t.Fatal("IsOpen() true after Abort()")
	}
}

func TestWriterAbortPreservesPriorSignals(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	w := dlep.NewWriter(buf, 0)

	if err := w.Begin(dlep.SignalHeartbeat); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	first, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	firstLen := len(first)

	if err := w.Begin(dlep.SignalPeerTermination); err != nil {
		t.Fatalf("second Begin() error = %v", err)
	}
	if err := w.AddTLV(dlep.TLVStatus, []byte{0}); err != nil {
		t.Fatalf("AddTLV() error = %v", err)
	}
	w.Abort()

	if buf.Len() != firstLen {
		t.Fatalf("buffer len after Abort() = %d, want %d (first signal preserved)", buf.Len(), firstLen)
	}
}

func TestWriterBufferOverflow(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	w := dlep.NewWriter(buf, dlep.SignalHeaderSize+dlep.TLVHeaderSize) // room for header + one empty TLV header only

	if err := w.Begin(dlep.SignalHeartbeat); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	err := w.AddTLV(dlep.TLVStatus, []byte{0, 0, 0, 0})
	if !errors.Is(err, dlep.ErrBufferOverflow) {
		t.Fatalf("AddTLV() error = %v, want ErrBufferOverflow", err)
	}
	if w.IsOpen() {
		t.Fatal("IsOpen() true after overflow should have aborted")
	}
}
