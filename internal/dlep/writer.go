package dlep

// TLV writer: stream-builds outbound signals into an outbound buffer supplied
// by its owner with a rewind-on-failure discipline. Every signal must pair
// Begin with Finish or Abort; the writer never allocates beyond the
// caller-provided buffer.

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Writer errors.
var (
	ErrNoOpenSignal     = errors.New("dlep: no signal in progress")
	ErrSignalInProgress = errors.New("dlep: a signal is already in progress")
	ErrBufferOverflow   = errors.New("dlep: outbound buffer would overflow")
)

// Writer wraps an outbound byte buffer owned by its caller (each Session
// allocates its own; the Interface keeps one for discovery signals) with
// begin/add/finish/abort signal-framing discipline.
type Writer struct {
	buf *bytes.Buffer

	// maxLen bounds buf's size; zero means unbounded (tests only). The
	// interface controller sets this to its configured MTU so a runaway
	// signal aborts instead of corrupting the wire.
	maxLen int

	open       bool
	startOff   int // buf length when Begin was called
	signalType SignalType
}

// NewWriter creates a Writer over buf, capping total buffered size at
// maxLen bytes (0 = unbounded).
func NewWriter(buf *bytes.Buffer, maxLen int) *Writer {
	return &Writer{buf: buf, maxLen: maxLen}
}

// Begin snapshots the current output offset and reserves a 4-byte
// signal header (type + placeholder length).4.
func (w *Writer) Begin(signalType SignalType) error {
	if w.open {
		return fmt.Errorf("begin signal %s: %w", signalType, ErrSignalInProgress)
	}

	w.startOff = w.buf.Len()
	w.signalType = signalType
	w.open = true

	header := make([]byte, SignalHeaderSize)
	binary.BigEndian.PutUint16(header[0:2], uint16(signalType))
	if err := w.write(header); err != nil {
		w.abortLocked()
		return err
	}
	return nil
}

// AddTLV appends one TLV to the signal currently in progress.
func (w *Writer) AddTLV(tlvType TLVType, value []byte) error {
	if !w.open {
		return fmt.Errorf("add tlv %s: %w", tlvType, ErrNoOpenSignal)
	}
	if err := w.write(EncodeTLV(tlvType, value)); err != nil {
		w.abortLocked()
		return err
	}
	return nil
}

// Finish patches the signal's length field and closes it out. Returns
// the complete framed signal bytes (a view into the shared buffer's
// tail, valid until the next Begin).
func (w *Writer) Finish() ([]byte, error) {
	if !w.open {
		return nil, fmt.Errorf("finish signal: %w", ErrNoOpenSignal)
	}

	all := w.buf.Bytes()
	signalLen := len(all) - w.startOff - SignalHeaderSize
	binary.BigEndian.PutUint16(all[w.startOff+2:w.startOff+4], uint16(signalLen))

	w.open = false
	return all[w.startOff:], nil
}

// Abort truncates the buffer back to the pre-Begin snapshot, discarding
// whatever was written for the in-flight signal.
func (w *Writer) Abort() {
	if !w.open {
		return
	}
	w.abortLocked()
}

func (w *Writer) abortLocked() {
	truncated := w.buf.Bytes()[:w.startOff]
	w.buf.Reset()
	w.buf.Write(truncated)
	w.open = false
}

// write appends b to the buffer, enforcing maxLen.
func (w *Writer) write(b []byte) error {
	if w.maxLen > 0 && w.buf.Len()+len(b) > w.maxLen {
		return fmt.Errorf("write %d bytes at offset %d: %w", len(b), w.buf.Len(), ErrBufferOverflow)
	}
	w.buf.Write(b)
	return nil
}

// IsOpen reports whether a signal is currently in progress.
func (w *Writer) IsOpen() bool {
	return w.open
}
